package models

// Plan describes one subscription tier and its monthly ceilings.
// A limit <= 0 means unlimited.
type Plan struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`

	MaxRequestsPerMonth int `db:"max_requests_per_month" json:"maxRequestsPerMonth"`
	MaxTokensPerMonth   int `db:"max_tokens_per_month" json:"maxTokensPerMonth"`
	MaxTokensPerRequest int `db:"max_tokens_per_request" json:"maxTokensPerRequest"`
	MaxFileSizeMB       int `db:"max_file_size_mb" json:"maxFileSizeMB"`

	AllowStreaming          bool `db:"allow_streaming" json:"allowStreaming"`
	AllowVision             bool `db:"allow_vision" json:"allowVision"`
	AllowDocumentGeneration bool `db:"allow_document_generation" json:"allowDocumentGeneration"`

	PricePerMonthVND float64 `db:"price_per_month_vnd" json:"pricePerMonthVND"`
	PricePerYearVND  float64 `db:"price_per_year_vnd" json:"pricePerYearVND"`

	IsActive  bool `db:"is_active" json:"isActive"`
	SortOrder int  `db:"sort_order" json:"sortOrder"`
}

// UnlimitedRequests reports whether the plan has no monthly request ceiling.
func (p *Plan) UnlimitedRequests() bool {
	return p.MaxRequestsPerMonth <= 0
}

// UnlimitedTokens reports whether the plan has no monthly token ceiling.
func (p *Plan) UnlimitedTokens() bool {
	return p.MaxTokensPerMonth <= 0
}

// DefaultPlans returns the built-in plan catalog used to seed an empty registry.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:                      "free",
			Name:                    "Miễn phí",
			Description:             "Dùng thử — giới hạn 50 request/tháng",
			MaxRequestsPerMonth:     50,
			MaxTokensPerMonth:       100_000,
			MaxTokensPerRequest:     2048,
			MaxFileSizeMB:           5,
			AllowStreaming:          false,
			AllowVision:             true,
			AllowDocumentGeneration: true,
			PricePerMonthVND:        0,
			PricePerYearVND:         0,
			IsActive:                true,
			SortOrder:               0,
		},
		{
			ID:                      "basic",
			Name:                    "Cơ bản",
			Description:             "Cá nhân — 500 request/tháng",
			MaxRequestsPerMonth:     500,
			MaxTokensPerMonth:       1_000_000,
			MaxTokensPerRequest:     4096,
			MaxFileSizeMB:           10,
			AllowStreaming:          true,
			AllowVision:             true,
			AllowDocumentGeneration: true,
			PricePerMonthVND:        99_000,
			PricePerYearVND:         990_000,
			IsActive:                true,
			SortOrder:               1,
		},
		{
			ID:                      "pro",
			Name:                    "Chuyên nghiệp",
			Description:             "Đơn vị — 2000 request/tháng",
			MaxRequestsPerMonth:     2000,
			MaxTokensPerMonth:       5_000_000,
			MaxTokensPerRequest:     8192,
			MaxFileSizeMB:           20,
			AllowStreaming:          true,
			AllowVision:             true,
			AllowDocumentGeneration: true,
			PricePerMonthVND:        299_000,
			PricePerYearVND:         2_990_000,
			IsActive:                true,
			SortOrder:               2,
		},
		{
			ID:                      "enterprise",
			Name:                    "Doanh nghiệp",
			Description:             "Không giới hạn — liên hệ báo giá",
			MaxRequestsPerMonth:     -1,
			MaxTokensPerMonth:       -1,
			MaxTokensPerRequest:     16384,
			MaxFileSizeMB:           50,
			AllowStreaming:          true,
			AllowVision:             true,
			AllowDocumentGeneration: true,
			PricePerMonthVND:        999_000,
			PricePerYearVND:         9_990_000,
			IsActive:                true,
			SortOrder:               3,
		},
	}
}
