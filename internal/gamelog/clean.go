package gamelog

import (
	"regexp"
	"strings"
)

var (
	styleBlockRe   = regexp.MustCompile(`(?s)<style>(.*?)</style>`)
	junkTagRe      = regexp.MustCompile(`</?(?:font|link|sprite|color|style)[^>]*>`)
	tooltipPrevRe  = regexp.MustCompile(`(?m)<div class="tooltipprev">(.+?)</span></div>$`)
	styleKeepToken = "goodstyle>"
)

// CleanTags repairs the markup defects of the game client's exporter:
// decorative tags are stripped (embedded style sheets survive) and the
// misplaced closer of the previous-role tooltip is moved back inside its span.
func CleanTags(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = styleBlockRe.ReplaceAllString(text, "<goodstyle>$1</goodstyle>")
	text = junkTagRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, styleKeepToken, "style>")
	return tooltipPrevRe.ReplaceAllString(text, `<div class="tooltipprev">$1</div></span>`)
}
