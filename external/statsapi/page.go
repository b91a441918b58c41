package statsapi

import (
	"bytes"
	"fmt"
	"regexp"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/scouting-sync/internal/usecase"
)

var basicAuthHeaderRegex = regexp.MustCompile(`Basic [A-Za-z0-9+/=]+`)

// pageJSON keeps numbers as json.Number so ids past 2^53 survive decoding.
var pageJSON = sonic.Config{UseNumber: true}.Froze()

type pageEnvelope struct {
	Count    *int                `json:"count"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
	Results  []usecase.RawRecord `json:"results"`
}

type page struct {
	Results []usecase.RawRecord
	Next    string
}

// decodePage accepts a bare JSON list or a {count,next,previous,results} envelope.
func decodePage(raw []byte) (page, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return page{}, nil
	}

	if trimmed[0] == '[' {
		var items []usecase.RawRecord
		if err := pageJSON.Unmarshal(trimmed, &items); err != nil {
			return page{}, fmt.Errorf("decode list payload: %w", err)
		}
		return page{Results: dropNullRows(items)}, nil
	}

	var envelope pageEnvelope
	if err := pageJSON.Unmarshal(trimmed, &envelope); err != nil {
		return page{}, fmt.Errorf("decode envelope payload: %w", err)
	}
	out := page{Results: dropNullRows(envelope.Results)}
	if envelope.Next != nil {
		out.Next = *envelope.Next
	}
	return out, nil
}

func dropNullRows(items []usecase.RawRecord) []usecase.RawRecord {
	out := items[:0]
	for _, item := range items {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}
