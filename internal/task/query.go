package task

import (
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 3
	MaxLimit     = 100
)

// sortColumns - разрешённые поля сортировки (имя в API -> колонка)
var sortColumns = map[string]string{
	"username":    "username",
	"email":       "email",
	"isCompleted": "is_completed",
	"createdAt":   "created_at",
}

type ListQuery struct {
	Page      int
	Limit     int
	SortField string
	SortOrder string
}

// ParseListQuery нормализует сырые параметры запроса. Некорректные значения
// молча заменяются значениями по умолчанию.
func ParseListQuery(page, limit, sortField, sortOrder string) ListQuery {
	q := ListQuery{
		Page:      parsePositive(page, DefaultPage),
		Limit:     parsePositive(limit, DefaultLimit),
		SortField: "createdAt",
		SortOrder: "DESC",
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if _, ok := sortColumns[sortField]; ok {
		q.SortField = sortField
	}
	if strings.EqualFold(strings.TrimSpace(sortOrder), "ASC") {
		q.SortOrder = "ASC"
	}
	return q
}

func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// OrderClause возвращает безопасное выражение ORDER BY
func (q ListQuery) OrderClause() string {
	column, ok := sortColumns[q.SortField]
	if !ok {
		column = sortColumns["createdAt"]
	}
	order := "DESC"
	if q.SortOrder == "ASC" {
		order = "ASC"
	}
	return column + " " + order + ", id " + order
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func parsePositive(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
