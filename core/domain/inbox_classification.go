package domain

// Label is one category of the fixed classification label set.
type Label string

const (
	LabelMarketing    Label = "marketing"
	LabelSocial       Label = "social"
	LabelWork         Label = "work"
	LabelSubscription Label = "subscription"
	LabelFinance      Label = "finance"
	LabelSecurity     Label = "security"
	LabelOther        Label = "other"
)

// LabelMeta describes a label for prompts and clients.
type LabelMeta struct {
	Key         Label  `json:"key"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Labels is the fixed label set in priority order; ties resolve to the earlier
// entry.
var Labels = []LabelMeta{
	{Key: LabelMarketing, Name: "Marketing & Advertising", DisplayName: "Pazarlama ve Reklam (Tanıtımlar)", Description: "Promotions, campaigns, ads and deals"},
	{Key: LabelSocial, Name: "Social", DisplayName: "Sosyal", Description: "Social networks, friends and community notifications"},
	{Key: LabelWork, Name: "Work & Professional", DisplayName: "İş ve Profesyonel İletişim", Description: "Work, colleagues, clients, meetings and projects"},
	{Key: LabelSubscription, Name: "Subscription Notices", DisplayName: "Abonelik Bildirimleri", Description: "Newsletters and service or subscription updates"},
	{Key: LabelFinance, Name: "Bills & Finance", DisplayName: "Fatura ve Finansal Bildirimler", Description: "Invoices, receipts, payments and banking"},
	{Key: LabelSecurity, Name: "Suspicious or Security", DisplayName: "Şüpheli veya Güvenlik İçerikli", Description: "Security alerts, login codes, phishing or suspicious content"},
	{Key: LabelOther, Name: "Other", DisplayName: "Diğer", Description: "Anything that fits no other category"},
}

// LabelKeys returns the label keys in priority order.
func LabelKeys() []string {
	keys := make([]string, len(Labels))
	for i, l := range Labels {
		keys[i] = string(l.Key)
	}
	return keys
}

// IsKnownLabel reports whether s is a label key or a display name.
func IsKnownLabel(s string) bool {
	_, ok := ResolveLabel(s)
	return ok
}

// ResolveLabel maps a key, English name or display name to its key.
func ResolveLabel(s string) (Label, bool) {
	for _, l := range Labels {
		if s == string(l.Key) || s == l.Name || s == l.DisplayName {
			return l.Key, true
		}
	}
	return "", false
}

// Classification is the classifier output for one mail.
type Classification struct {
	PredictedClass  string             `json:"predicted_class"`
	ConfidenceScore float64            `json:"confidence_score"`
	AllScores       map[string]float64 `json:"all_scores"`
}
