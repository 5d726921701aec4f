package ai

import "strings"

// Working modes the assistant can announce mid-conversation. The detection
// vocabulary is closed: anything outside this list is ignored. The model
// announces a mode by its display label.
var modeLabels = []string{
	"Client Core",
	"Propuesta",
	"Proyecto",
	"Registro",
	"Informe",
}

// DetectMode scans a finished reply for a mode activation phrase, either
// `función: "<label>"` or `función <label>`, case-insensitive. Returns the
// display label of the first mode found, or empty.
func DetectMode(text string) string {
	lower := strings.ToLower(text)
	for _, label := range modeLabels {
		name := strings.ToLower(label)
		if strings.Contains(lower, `función: "`+name+`"`) ||
			strings.Contains(lower, "función "+name) {
			return label
		}
	}
	return ""
}
