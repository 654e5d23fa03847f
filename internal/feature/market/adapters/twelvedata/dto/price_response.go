package dto

// PriceResponse はTwelve Data priceエンドポイントからのJSONレスポンスを表します。
// エラー時はPriceが空でStatus/Code/Messageが設定されます。
type PriceResponse struct {
	Price   string `json:"price"`
	Status  string `json:"status,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
