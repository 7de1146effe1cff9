package provider

import "fmt"

// Entry holds the static, provider-type level metadata needed to build an
// authorization URL. Entries are compiled in; a missing entry is a
// configuration defect, not a runtime condition.
type Entry struct {
	Category Category
	Scope    string
	Endpoint string

	// SilentEndpoint, when set, is used instead of Endpoint for providers
	// configured with the silent login method.
	SilentEndpoint string
	SilentScope    string

	// QRPolling marks providers whose authorization URL is rendered as a
	// scannable code instead of being followed directly.
	QRPolling bool
}

var catalog = map[Type]Entry{
	TypeGitHub: {
		Category: CategoryOAuth,
		Scope:    "user:email read:user",
		Endpoint: "https://github.com/login/oauth/authorize",
	},
	TypeGoogle: {
		Category: CategoryOAuth,
		Scope:    "profile email",
		Endpoint: "https://accounts.google.com/signin/oauth",
	},
	TypeFacebook: {
		Category: CategoryOAuth,
		Scope:    "email,public_profile",
		Endpoint: "https://www.facebook.com/dialog/oauth",
	},
	TypeWeChat: {
		Category:       CategoryOAuth,
		Scope:          "snsapi_login",
		Endpoint:       "https://open.weixin.qq.com/connect/qrconnect",
		SilentEndpoint: "https://open.weixin.qq.com/connect/oauth2/authorize",
		SilentScope:    "snsapi_userinfo",
		QRPolling:      true,
	},
	TypeDingTalk: {
		Category:  CategoryOAuth,
		Scope:     "snsapi_login",
		Endpoint:  "https://oapi.dingtalk.com/connect/qrconnect",
		QRPolling: true,
	},
	TypeWeibo: {
		Category: CategoryOAuth,
		Scope:    "email",
		Endpoint: "https://api.weibo.com/oauth2/authorize",
	},
	TypeGitee: {
		Category: CategoryOAuth,
		Scope:    "user_info emails",
		Endpoint: "https://gitee.com/oauth/authorize",
	},
	TypeLinkedIn: {
		Category: CategoryOAuth,
		Scope:    "r_liteprofile r_emailaddress",
		Endpoint: "https://www.linkedin.com/oauth/v2/authorization",
	},
	TypeWeCom: {
		Category:  CategoryOAuth,
		Scope:     "snsapi_userinfo",
		Endpoint:  "https://open.work.weixin.qq.com/wwopen/sso/qrConnect",
		QRPolling: true,
	},
	TypeLark: {
		Category: CategoryOAuth,
		Scope:    "contact:user.base:readonly",
		Endpoint: "https://open.feishu.cn/open-apis/authen/v1/index",
	},
	TypeGitLab: {
		Category: CategoryOAuth,
		Scope:    "read_user profile",
		Endpoint: "https://gitlab.com/oauth/authorize",
	},
	TypeAliyunIDaaS: {
		Category: CategorySAML,
	},
	TypeKeycloak: {
		Category: CategorySAML,
	},
	TypeMetaMask: {
		Category: CategoryWeb3,
	},
	TypeWeb3Onboard: {
		Category: CategoryWeb3,
	},
	TypeCustom: {
		Category: CategoryCustom,
	},
}

// Lookup returns the catalog entry for the given provider type. An unknown
// type means the binary was built against a provider it cannot serve.
func Lookup(t Type) (Entry, error) {
	e, ok := catalog[t]
	if !ok {
		return Entry{}, fmt.Errorf("provider type %q has no catalog entry", t)
	}
	return e, nil
}

// MustLookup is for callers that have already validated the type, such as
// the init-time self check.
func MustLookup(t Type) Entry {
	e, err := Lookup(t)
	if err != nil {
		panic(err)
	}
	return e
}

// Types returns every provider type known to the catalog.
func Types() []Type {
	ts := make([]Type, 0, len(catalog))
	for t := range catalog {
		ts = append(ts, t)
	}
	return ts
}

func init() {
	// Every dispatchable type must carry a category; a zero-valued entry
	// would otherwise surface as a malformed URL much later.
	for t, e := range catalog {
		if e.Category == "" {
			panic(fmt.Sprintf("catalog entry for %q has no category", t))
		}
		if e.Category == CategoryOAuth && e.Endpoint == "" {
			panic(fmt.Sprintf("OAuth catalog entry for %q has no endpoint", t))
		}
	}
}
