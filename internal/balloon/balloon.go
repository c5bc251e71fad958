// Package balloon interprets resolved keyed-archive payloads into typed
// app-balloon records: URL previews, Apple Pay, Apple Music, collaboration
// invites, handwriting, and third-party app layouts.
package balloon

import (
	"strings"

	"github.com/matheus3301/imex/internal/keyedarchive"
)

// Balloon is the closed set of decoded balloon records.
type Balloon interface {
	isBalloon()
}

// URLPreview is the link card generated for a plain URL.
type URLPreview struct {
	URL      string
	Title    string
	Summary  string
	SiteName string
	ImageRef string
}

// AppMusic is an Apple Music share card.
type AppMusic struct {
	Artist     string
	Album      string
	Track      string
	URL        string
	PreviewURL string
}

// PayKind distinguishes the direction of an Apple Pay balloon.
type PayKind int

const (
	PaySend PayKind = iota
	PayRequest
	PayReceive
)

// ApplePay is a peer payment balloon.
type ApplePay struct {
	Amount   string
	Currency string
	Kind     PayKind
}

// Collaboration is a shared-document invite (Pages, Freeform, ...).
type Collaboration struct {
	Title string
	URL   string
	App   string
}

// SharePlay is a FaceTime/SharePlay activity record.
type SharePlay struct {
	Activity string
}

// Handwriting is a handwritten message; only its identifier survives export.
type Handwriting struct {
	ID string
}

// GenericApp is Apple's MSMessageTemplateLayout, used by third-party apps
// and as the fallback for unrecognised first-party balloons.
type GenericApp struct {
	BundleID        string
	LDText          string
	URL             string
	ImageRef        string
	Title           string
	Subtitle        string
	Caption         string
	TrailingCaption string
}

// UnknownBalloon records a payload nothing could interpret; rendering it is
// non-fatal.
type UnknownBalloon struct {
	BundleID string
}

func (URLPreview) isBalloon()     {}
func (AppMusic) isBalloon()       {}
func (ApplePay) isBalloon()       {}
func (Collaboration) isBalloon()  {}
func (SharePlay) isBalloon()      {}
func (Handwriting) isBalloon()    {}
func (GenericApp) isBalloon()     {}
func (UnknownBalloon) isBalloon() {}

// Bundle identifiers for first-party balloons. App-store extensions arrive
// as `com.apple.messages.MSMessageExtensionBalloonPlugin:<team>:<bundle>`;
// AppBundleID extracts the final component.
const (
	BundleURL         = "com.apple.messages.URLBalloonProvider"
	BundleHandwriting = "com.apple.Handwriting.HandwritingProvider"
	BundleApplePay    = "com.apple.PassbookUIService.PeerPaymentMessagesExtension"
)

type decodeFunc func(bundleID string, root *keyedarchive.Node) Balloon

// registry maps an app bundle id to its decoder. Unlisted ids fall through
// to the generic layout decoder.
var registry = map[string]decodeFunc{
	BundleURL:         decodeURLFamily,
	BundleHandwriting: decodeHandwriting,
	BundleApplePay:    decodeApplePay,
}

// AppBundleID reduces a balloon_bundle_id column value to the app's own
// bundle id.
func AppBundleID(raw string) string {
	parts := strings.Split(raw, ":")
	if len(parts) >= 3 {
		return parts[2]
	}
	return parts[0]
}

// Decode interprets a resolved payload graph for the given balloon bundle
// id. It never fails: payloads that fit no known layout come back as
// UnknownBalloon.
func Decode(rawBundleID string, root *keyedarchive.Node) Balloon {
	bundleID := AppBundleID(rawBundleID)
	if fn, ok := registry[bundleID]; ok {
		return fn(bundleID, root)
	}
	if app, ok := decodeGenericApp(bundleID, root); ok {
		return app
	}
	return UnknownBalloon{BundleID: bundleID}
}
