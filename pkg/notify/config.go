package notify

// EmailConfig configures dunning emails. Without Postmark tokens the
// emails are written to DevDir instead of being sent.
type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkAPIURL       string `env:"POSTMARK_API_URL"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"billing@example.com"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@example.com"`
	ProductName          string `env:"PRODUCT_NAME" envDefault:"Billing"`
	Language             string `env:"EMAIL_LANGUAGE" envDefault:"en"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"tmp/emails"`
}

// WebhookConfig configures the notification webhook. Empty URL disables it.
type WebhookConfig struct {
	URL    string `env:"NOTIFY_WEBHOOK_URL"`
	Secret string `env:"NOTIFY_WEBHOOK_SECRET"`
}
