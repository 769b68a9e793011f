package domain

// Campaign is an operator-owned reward offer for one currency.
// Only Active changes after creation.
type Campaign struct {
	CampaignID          string `json:"id" dynamodbav:"campaign_id"`
	CurrencyPluginID    string `json:"currencyPluginId" dynamodbav:"currency_plugin_id"`
	Ticker              string `json:"ticker" dynamodbav:"ticker"`
	USDAmount           string `json:"usdAmount" dynamodbav:"usd_amount"`
	Active              bool   `json:"active" dynamodbav:"active"`
	Description         string `json:"description" dynamodbav:"description"`
	CurrencyDisplayName string `json:"currencyDisplayName" dynamodbav:"currency_display_name"`
}
