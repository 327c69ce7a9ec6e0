package model

// User 用户只读模型，用户数据由外部账号服务维护
type User struct {
	ID       int64   `gorm:"primaryKey;autoIncrement;comment:用户标识" json:"id"`
	UserName string  `gorm:"size:255;not null;uniqueIndex;comment:用户名" json:"user_name"`
	Avatar   *string `gorm:"size:500;comment:用户头像" json:"avatar"`
	UserRole string  `gorm:"size:256;not null;default:'user';comment:用户角色" json:"user_role"`
	IsDelete int64   `gorm:"not null;default:0;comment:删除标识" json:"-"`
}

func (User) TableName() string {
	return "users"
}
