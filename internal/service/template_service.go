// internal/service/template_service.go
package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ewynk/mail-backend/internal/model"
)

// placeholderRe matches {{identifier}} or, failing that, a single-brace {…}
// token. Both forms are handled in one left-to-right pass so inserted values
// are never scanned again.
var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}|\{([^{}]*)\}`)

var preheaderPolicy = bluemonday.StrictPolicy()

// BrandAssets are the asset URLs every template may reference.
type BrandAssets struct {
	LogoURL   string
	BannerURL string
	IconURL   string
}

// CampaignContext carries the campaign-scoped values layered over a contact.
type CampaignContext struct {
	CampaignID    string
	CTAURL        string // per-send override
	DefaultCTAURL string
	BaseURL       string
	DefaultDomain string
	Brand         BrandAssets
	// Overrides win over every other variable.
	Overrides map[string]any
}

// Rendered is one recipient's personalised email.
type Rendered struct {
	Subject        string `json:"subject"`
	HTML           string `json:"html"`
	Text           string `json:"text,omitempty"`
	UnsubscribeURL string `json:"unsubscribe_url"`
}

// Render substitutes placeholders in s. Unknown {{key}} tokens are kept
// verbatim. Single-brace tokens are replaced only when their key exists and
// contains no colon, which leaves inline CSS alone.
func Render(s string, vars map[string]any) string {
	if s == "" {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(token string) string {
		m := placeholderRe.FindStringSubmatch(token)
		if key := m[1]; key != "" {
			if v, ok := vars[key]; ok {
				return stringify(v)
			}
			return token
		}

		key := m[2]
		if key == "" || strings.Contains(key, ":") {
			return token
		}
		if v, ok := vars[key]; ok {
			return stringify(v)
		}
		return token
	})
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// UnsubscribeURL builds the link that opts a contact out of future campaigns.
func UnsubscribeURL(baseURL, campaignID, contactID string) string {
	q := url.Values{}
	q.Set("campaign", campaignID)
	q.Set("contact", contactID)
	return strings.TrimRight(baseURL, "/") + "/unsubscribe?" + q.Encode()
}

// BuildVariables assembles the variable map for one recipient. Later layers
// win: brand assets, contact fields, campaign values, overrides.
func BuildVariables(c model.Contact, cc CampaignContext) map[string]any {
	vars := map[string]any{
		"logo_url":       cc.Brand.LogoURL,
		"brand_logo_url": cc.Brand.LogoURL,
		"banner_url":     cc.Brand.BannerURL,
		"icon_url":       cc.Brand.IconURL,
	}

	name := strings.TrimSpace(c.Name)
	first := strings.TrimSpace(c.FirstName)
	last := strings.TrimSpace(c.LastName)
	if parts := strings.Fields(name); len(parts) > 0 {
		if first == "" {
			first = parts[0]
		}
		if last == "" && len(parts) > 1 {
			last = strings.Join(parts[1:], " ")
		}
	}

	displayName := name
	if displayName == "" {
		displayName = first
	}
	if displayName == "" {
		displayName = "there"
	}

	website := strings.TrimSpace(c.Website)
	if website == "" {
		website = emailDomain(c.Email)
	}
	if website == "" {
		website = cc.DefaultDomain
	}

	contactVars := map[string]any{
		"email":      c.Email,
		"name":       displayName,
		"firstName":  first,
		"lastName":   last,
		"first_name": first,
		"last_name":  last,
		"company":    c.Company,
		"jobTitle":   c.JobTitle,
		"job_title":  c.JobTitle,
		"phone":      c.Phone,
		"website":    website,
		"address":    c.Address,
		"city":       c.City,
		"state":      c.State,
		"country":    c.Country,
		"postalCode": c.PostalCode,
	}
	for k, v := range contactVars {
		vars[k] = v
	}

	cta := cc.CTAURL
	if cta == "" {
		cta = cc.DefaultCTAURL
	}
	vars["cta_url"] = cta
	vars["unsubscribe_url"] = UnsubscribeURL(cc.BaseURL, cc.CampaignID, c.ID)
	vars["campaign_id"] = cc.CampaignID
	vars["contact_id"] = c.ID

	for k, v := range cc.Overrides {
		vars[k] = v
	}
	return vars
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// RenderEmail personalises subject, HTML and text of tpl for one contact.
func RenderEmail(tpl model.Template, c model.Contact, cc CampaignContext) Rendered {
	vars := BuildVariables(c, cc)

	out := Rendered{
		Subject:        Render(tpl.Subject, vars),
		HTML:           Render(tpl.HTML, vars),
		UnsubscribeURL: stringify(vars["unsubscribe_url"]),
	}
	if tpl.Text != "" {
		out.Text = Render(tpl.Text, vars)
	}
	if tpl.PreviewText != "" {
		out.HTML = withPreheader(out.HTML, Render(tpl.PreviewText, vars))
	}
	return out
}

var bodyOpenRe = regexp.MustCompile(`(?i)<body[^>]*>`)

// withPreheader hides text right after <body> so inbox previews show it.
func withPreheader(html, preview string) string {
	text := strings.TrimSpace(preheaderPolicy.Sanitize(preview))
	if text == "" {
		return html
	}
	block := `<div style="display:none;max-height:0;overflow:hidden;mso-hide:all;">` + text + `</div>`

	if loc := bodyOpenRe.FindStringIndex(html); loc != nil {
		return html[:loc[1]] + block + html[loc[1]:]
	}
	return block + html
}
