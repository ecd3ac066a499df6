package report

import (
	"strings"

	"github.com/gatewise/traffic-report/internal/models"
)

// ParseEventMeta decodes the structured metadata the gateway packs into
// an event's referer column: "ref=... | url=... | detail=..." with any
// subset of the three segments present. A value that carries no
// recognized segment is treated as a plain referrer, which keeps rows
// written before the packed format readable.
func ParseEventMeta(referer string) *models.EventMeta {
	if referer == "" {
		return nil
	}

	meta := &models.EventMeta{}
	matched := false
	for _, seg := range strings.Split(referer, " | ") {
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		switch key {
		case "ref":
			meta.Referrer = value
			matched = true
		case "url":
			meta.RequestURL = value
			matched = true
		case "detail":
			meta.Detail = value
			matched = true
		}
	}

	if !matched {
		return &models.EventMeta{Referrer: referer}
	}
	return meta
}
