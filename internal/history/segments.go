package history

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jisilva10/ALAIN2.0/internal/models"
)

// Internal text markers embedded in persisted message text. The attachment
// marker records that a file rode along with a user turn; the reference-links
// block is a labeled bullet list the model appends for image sources. Both
// are stripped before text is replayed to the completion API and re-parsed
// for display.
var (
	attachmentMarkerRe = regexp.MustCompile(`\[Archivo adjuntado: ([^\]]+)\]`)

	// The heading label admits the accented and unaccented historical
	// spellings. Only a bullet list directly under one of these headings is
	// a link block; unrelated bullet lists never match.
	linkBlockRe = regexp.MustCompile(`(?i)\*\*(Fuentes para Imagenes|Imágenes de Referencia|Imagenes de Referencia):\*\*[ \t]*\n((?:[ \t]*[*+-][ \t]+\[[^\]]*\]\([^)]*\)[ \t]*\n?)*)`)

	bulletLinkRe = regexp.MustCompile(`[*+-][ \t]+\[([^\]]*)\]\(([^)]*)\)`)
)

// SegmentKind tags one parsed piece of a message text.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentAttachmentMarker
	SegmentLinkBlock
)

// Segment is one tagged piece of a persisted text.
type Segment struct {
	Kind SegmentKind
	// Text is the raw slice of the input this segment covers.
	Text string
	// AttachmentName is set for SegmentAttachmentMarker.
	AttachmentName string
	// Links is set for SegmentLinkBlock.
	Links []models.ImageLink
}

// Segments is the parse result consumed by the reconciliation engine.
type Segments struct {
	CleanText      string
	ImageLinks     []models.ImageLink
	AttachmentName string
}

// AttachmentMarker builds the persisted marker line for an attached file.
func AttachmentMarker(fileName string) string {
	return fmt.Sprintf("[Archivo adjuntado: %s]", fileName)
}

// Parse splits text into tagged segments. The input is fully covered: joining
// every segment's Text reproduces it.
func Parse(text string) []Segment {
	type span struct {
		start, end int
		seg        Segment
	}
	var spans []span
	for _, m := range attachmentMarkerRe.FindAllStringSubmatchIndex(text, -1) {
		spans = append(spans, span{m[0], m[1], Segment{
			Kind:           SegmentAttachmentMarker,
			Text:           text[m[0]:m[1]],
			AttachmentName: text[m[2]:m[3]],
		}})
	}
	for _, m := range linkBlockRe.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[0]:m[1]]
		var links []models.ImageLink
		for _, lm := range bulletLinkRe.FindAllStringSubmatch(text[m[4]:m[5]], -1) {
			links = append(links, models.ImageLink{Label: lm[1], URL: lm[2]})
		}
		spans = append(spans, span{m[0], m[1], Segment{
			Kind:  SegmentLinkBlock,
			Text:  raw,
			Links: links,
		}})
	}

	// Marker kinds never overlap in practice; a simple insertion sort by
	// start offset keeps document order.
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}

	var out []Segment
	pos := 0
	for _, sp := range spans {
		if sp.start > pos {
			out = append(out, Segment{Kind: SegmentText, Text: text[pos:sp.start]})
		}
		out = append(out, sp.seg)
		pos = sp.end
	}
	if pos < len(text) {
		out = append(out, Segment{Kind: SegmentText, Text: text[pos:]})
	}
	return out
}

// Clean strips every internal marker and trims. Applying it twice yields the
// same result as applying it once.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range Parse(text) {
		if seg.Kind == SegmentText {
			b.WriteString(seg.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// ExtractSegments pulls the attachment marker and reference-links block out
// of text and returns the remainder as CleanText. Multiple link blocks are
// merged in order; only the first attachment marker's name is reported.
func ExtractSegments(text string) Segments {
	var res Segments
	var b strings.Builder
	for _, seg := range Parse(text) {
		switch seg.Kind {
		case SegmentText:
			b.WriteString(seg.Text)
		case SegmentAttachmentMarker:
			if res.AttachmentName == "" {
				res.AttachmentName = seg.AttachmentName
			}
		case SegmentLinkBlock:
			res.ImageLinks = append(res.ImageLinks, seg.Links...)
		}
	}
	res.CleanText = strings.TrimSpace(b.String())
	return res
}
