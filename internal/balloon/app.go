package balloon

import (
	"strings"

	"github.com/matheus3301/imex/internal/keyedarchive"
)

// decodeGenericApp interprets an MSMessageTemplateLayout payload: the
// balloon fields live under userInfo, with a few top-level extras. Reports
// false when the payload has none of the layout's keys, so the caller can
// surface UnknownBalloon instead.
func decodeGenericApp(bundleID string, root *keyedarchive.Node) (GenericApp, bool) {
	userInfo := root.Key("userInfo")
	app := GenericApp{
		BundleID:        bundleID,
		LDText:          root.StringKey("ldtext"),
		URL:             root.StringKey("URL"),
		ImageRef:        root.StringKey("image"),
		Title:           userInfo.StringKey("image-title"),
		Subtitle:        userInfo.StringKey("image-subtitle"),
		Caption:         userInfo.StringKey("caption"),
		TrailingCaption: userInfo.StringKey("secondary-subcaption"),
	}
	if app.URL == "" {
		app.URL = root.StringKey("URL", "URL")
	}
	empty := app.LDText == "" && app.URL == "" && app.ImageRef == "" &&
		app.Title == "" && app.Subtitle == "" && app.Caption == "" &&
		app.TrailingCaption == "" && userInfo == nil
	return app, !empty
}

// decodeApplePay interprets a peer-payment balloon. The template layout
// carries the human-readable summary: ldtext reads like "Sent $25.00 with
// Apple Pay", the image subtitle like "$25.00 Payment".
func decodeApplePay(bundleID string, root *keyedarchive.Node) Balloon {
	app, ok := decodeGenericApp(bundleID, root)
	if !ok {
		return UnknownBalloon{BundleID: bundleID}
	}

	pay := ApplePay{Kind: PaySend}
	lower := strings.ToLower(app.LDText)
	switch {
	case strings.HasPrefix(lower, "request"):
		pay.Kind = PayRequest
	case strings.HasPrefix(lower, "received"):
		pay.Kind = PayReceive
	}

	pay.Amount, pay.Currency = parseAmount(app.Subtitle)
	if pay.Amount == "" {
		pay.Amount, pay.Currency = parseAmount(app.LDText)
	}
	if pay.Amount == "" {
		return app
	}
	return pay
}

// parseAmount extracts the first currency amount from a display string.
// Only the $ sigil appears in practice; it maps to USD.
func parseAmount(s string) (amount, currency string) {
	idx := strings.IndexByte(s, '$')
	if idx < 0 {
		return "", ""
	}
	rest := s[idx+1:]
	end := 0
	for end < len(rest) {
		c := rest[end]
		if (c < '0' || c > '9') && c != '.' && c != ',' {
			break
		}
		end++
	}
	if end == 0 {
		return "", ""
	}
	return strings.TrimRight(rest[:end], "."), "USD"
}

// decodeHandwriting keeps only the payload identifier; the stroke data
// itself is not exportable.
func decodeHandwriting(bundleID string, root *keyedarchive.Node) Balloon {
	id := root.StringKey("hwID")
	if id == "" {
		id = root.StringKey("id")
	}
	return Handwriting{ID: id}
}
