package provider

// Category groups provider types by the handshake they use.
type Category string

const (
	CategoryOAuth  Category = "OAuth"
	CategorySAML   Category = "SAML"
	CategoryWeb3   Category = "Web3"
	CategoryCustom Category = "Custom"
)

// Type identifies a concrete identity provider implementation.
type Type string

const (
	TypeGitHub      Type = "GitHub"
	TypeGoogle      Type = "Google"
	TypeFacebook    Type = "Facebook"
	TypeWeChat      Type = "WeChat"
	TypeDingTalk    Type = "DingTalk"
	TypeWeibo       Type = "Weibo"
	TypeGitee       Type = "Gitee"
	TypeLinkedIn    Type = "LinkedIn"
	TypeWeCom       Type = "WeCom"
	TypeLark        Type = "Lark"
	TypeGitLab      Type = "GitLab"
	TypeAliyunIDaaS Type = "Aliyun IDaaS"
	TypeKeycloak    Type = "Keycloak"
	TypeMetaMask    Type = "MetaMask"
	TypeWeb3Onboard Type = "Web3Onboard"
	TypeCustom      Type = "Custom"
)

// Method selects between the two endpoint shapes some providers offer
// for the same logical login action.
const (
	MethodNormal = "Normal Login"
	MethodSilent = "Silent Login"
)

// Provider is the per-application identity provider configuration as
// returned by the backend.
type Provider struct {
	Name     string   `json:"name"`
	Type     Type     `json:"type"`
	Category Category `json:"category"`
	ClientID string   `json:"clientId"`
	Method   string   `json:"method"`

	// Custom category only: authorization endpoint configured per provider.
	CustomAuthURL string `json:"customAuthUrl,omitempty"`
	CustomScope   string `json:"customScope,omitempty"`
}

// Rule controls how a binding is presented on the sign-in surface.
const (
	RuleNormal = "Normal"
	RuleSilent = "Silent"
)

// Binding pairs a provider with its per-application flags.
type Binding struct {
	Provider  Provider `json:"provider"`
	IsDefault bool     `json:"isDefault"`
	CanSignIn bool     `json:"canSignIn"`
	CanSignUp bool     `json:"canSignUp"`
	Rule      string   `json:"rule"`
}
