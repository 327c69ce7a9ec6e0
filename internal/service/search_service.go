package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"melodia-go/internal/api/dto"
	infraES "melodia-go/internal/infra/elasticsearch"
	"melodia-go/internal/model"
	"melodia-go/internal/repository"
	"melodia-go/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SearchService struct {
	commentRepo *repository.CommentRepository
	comments    *CommentService
	indexName   string
}

func NewSearchService(commentRepo *repository.CommentRepository, comments *CommentService, indexName string) *SearchService {
	if indexName == "" {
		indexName = "comments"
	}
	return &SearchService{commentRepo: commentRepo, comments: comments, indexName: indexName}
}

// SearchComments 按关键词搜索评论（ES 优先，失败则降级到 DB）
func (s *SearchService) SearchComments(ctx context.Context, viewerID int64, req *dto.SearchCommentRequest) (*dto.SearchCommentData, error) {
	if viewerID <= 0 {
		return nil, ErrUnauthenticated
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	var targetType *model.TargetType
	if v := strings.TrimSpace(req.TargetType); v != "" {
		tt := model.TargetType(v)
		if !tt.Valid() {
			return nil, ErrInvalidTarget
		}
		targetType = &tt
	}

	if infraES.Enabled() {
		data, err := s.searchFromES(ctx, viewerID, req)
		if err == nil {
			return data, nil
		}
		logger.Warn("ES search failed, fallback to DB", zap.Error(err))
	}
	return s.searchFromDB(ctx, viewerID, req, targetType)
}

func (s *SearchService) searchFromES(ctx context.Context, viewerID int64, req *dto.SearchCommentRequest) (*dto.SearchCommentData, error) {
	queryJSON, err := json.Marshal(BuildCommentSearchQuery(req))
	if err != nil {
		return nil, err
	}

	esCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := infraES.Search(esCtx, s.indexName, bytes.NewReader(queryJSON))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("ES search error: %s", resp.String())
	}

	var esResp struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source struct {
					ID int64 `json:"id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&esResp); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		ids = append(ids, h.Source.ID)
	}

	comments, err := s.commentRepo.GetByIDsWithUser(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*model.Comment, len(comments))
	for i := range comments {
		byID[comments[i].ID] = &comments[i]
	}
	ordered := make([]model.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, *c)
		}
	}

	return s.buildSearchData(ctx, viewerID, ordered, esResp.Hits.Total.Value, req, "es")
}

func (s *SearchService) searchFromDB(ctx context.Context, viewerID int64, req *dto.SearchCommentRequest, targetType *model.TargetType) (*dto.SearchCommentData, error) {
	skip := (req.Page - 1) * req.PageSize
	comments, total, err := s.commentRepo.Search(ctx, req.Keyword, req.TargetID, targetType, skip, req.PageSize)
	if err != nil {
		return nil, s.comments.failed("search comments", err)
	}
	return s.buildSearchData(ctx, viewerID, comments, total, req, "db")
}

func (s *SearchService) buildSearchData(ctx context.Context, viewerID int64, comments []model.Comment, total int64, req *dto.SearchCommentRequest, source string) (*dto.SearchCommentData, error) {
	items, err := s.comments.buildCommentInfos(ctx, comments, viewerID)
	if err != nil {
		return nil, err
	}

	totalPages := (total + int64(req.PageSize) - 1) / int64(req.PageSize)
	return &dto.SearchCommentData{
		Comments:   items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
		Source:     source,
	}, nil
}

// BuildCommentSearchQuery 构造 ES 查询
func BuildCommentSearchQuery(req *dto.SearchCommentRequest) map[string]interface{} {
	boolQ := map[string]interface{}{
		"filter": []interface{}{},
	}

	if kw := strings.TrimSpace(req.Keyword); kw != "" {
		boolQ["must"] = []interface{}{
			map[string]interface{}{
				"match": map[string]interface{}{
					"content": map[string]interface{}{
						"query":    kw,
						"operator": "and",
					},
				},
			},
		}
	}
	if req.TargetID != nil {
		boolQ["filter"] = append(boolQ["filter"].([]interface{}),
			map[string]interface{}{"term": map[string]interface{}{"target_id": *req.TargetID}})
	}
	if tt := strings.TrimSpace(req.TargetType); tt != "" {
		boolQ["filter"] = append(boolQ["filter"].([]interface{}),
			map[string]interface{}{"term": map[string]interface{}{"target_type": tt}})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQ,
		},
		"_source": []string{"id"},
		"from":    (req.Page - 1) * req.PageSize,
		"size":    req.PageSize,
		"sort": []interface{}{
			map[string]interface{}{"_score": map[string]string{"order": "desc"}},
			map[string]interface{}{"id": map[string]string{"order": "desc"}},
		},
	}
}

// SyncCommentToES 将评论最新状态同步到 ES，已删除的评论从索引移除
func (s *SearchService) SyncCommentToES(ctx context.Context, commentID int64) error {
	comment, err := s.commentRepo.GetActiveByIDWithUser(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return infraES.DeleteComment(ctx, s.indexName, commentID)
		}
		return err
	}
	return infraES.SyncComment(ctx, s.indexName, comment)
}

// RemoveCommentFromES 从 ES 移除评论
func (s *SearchService) RemoveCommentFromES(ctx context.Context, commentID int64) error {
	return infraES.DeleteComment(ctx, s.indexName, commentID)
}
