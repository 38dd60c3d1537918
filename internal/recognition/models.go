package recognition

import (
	"fmt"
	"math"
)

// BaikeInfo is the encyclopedia snippet returned when baike_num > 0.
type BaikeInfo struct {
	BaikeURL    string `json:"baike_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Item is one normalized recognition candidate.
type Item struct {
	Label          string     `json:"label"`
	Score          float64    `json:"score"`
	FormattedScore string     `json:"formatted_score"`
	MatchScore     *float64   `json:"match_score,omitempty"`
	BaikeInfo      *BaikeInfo `json:"baike_info,omitempty"`
}

// Result is the ordered candidate list for a single image.
type Result struct {
	LogID     uint64 `json:"log_id,omitempty"`
	Items     []Item `json:"result"`
	BestMatch *Item  `json:"best_match,omitempty"`
}

type apiItem struct {
	Label     string     `json:"label"`
	Name      string     `json:"name"`
	Score     float64    `json:"score"`
	BaikeInfo *BaikeInfo `json:"baike_info,omitempty"`
}

type apiResponse struct {
	LogID     uint64    `json:"log_id"`
	Result    []apiItem `json:"result"`
	ErrorCode int       `json:"error_code"`
	ErrorMsg  string    `json:"error_msg"`
}

// FormatScore renders a [0,1] confidence as a percentage with two decimals.
func FormatScore(raw float64) string {
	return fmt.Sprintf("%.2f%%", math.Round(raw*10000)/100)
}

func normalize(resp *apiResponse) *Result {
	items := make([]Item, 0, len(resp.Result))
	for _, it := range resp.Result {
		label := it.Label
		if label == "" {
			label = it.Name
		}
		items = append(items, Item{
			Label:          label,
			Score:          it.Score,
			FormattedScore: FormatScore(it.Score),
			BaikeInfo:      it.BaikeInfo,
		})
	}
	return &Result{LogID: resp.LogID, Items: items}
}
