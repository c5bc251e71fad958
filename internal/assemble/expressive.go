package assemble

import "strings"

// effectOf maps an expressive_send_style_id to its display name. Unknown
// identifiers keep their trailing component so new effects still render.
func effectOf(styleID string) *Effect {
	if styleID == "" {
		return nil
	}
	bubble := map[string]string{
		"com.apple.MobileSMS.expressivesend.impact":       "Slam",
		"com.apple.MobileSMS.expressivesend.loud":         "Loud",
		"com.apple.MobileSMS.expressivesend.gentle":       "Gentle",
		"com.apple.MobileSMS.expressivesend.invisibleink": "Invisible Ink",
	}
	screen := map[string]string{
		"com.apple.messages.effect.CKConfettiEffect":      "Confetti",
		"com.apple.messages.effect.CKEchoEffect":          "Echo",
		"com.apple.messages.effect.CKFireworksEffect":     "Fireworks",
		"com.apple.messages.effect.CKHappyBirthdayEffect": "Balloons",
		"com.apple.messages.effect.CKHeartEffect":         "Heart",
		"com.apple.messages.effect.CKLasersEffect":        "Lasers",
		"com.apple.messages.effect.CKShootingStarEffect":  "Shooting Star",
		"com.apple.messages.effect.CKSparklesEffect":      "Sparkles",
		"com.apple.messages.effect.CKSpotlightEffect":     "Spotlight",
	}
	if name, ok := bubble[styleID]; ok {
		return &Effect{Kind: EffectBubble, Name: name}
	}
	if name, ok := screen[styleID]; ok {
		return &Effect{Kind: EffectScreen, Name: name}
	}
	return &Effect{Kind: EffectBubble, Name: styleID[strings.LastIndex(styleID, ".")+1:]}
}
