package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// ClientHeaderName is the structured header each request carries so the
// billing backend can attribute mutations to a register.
// Format (RFC 8941 Dictionary): register="r-12";key="...";agent="poscart/1.0"
const ClientHeaderName = "POS-Client"

// BuildClientHeader serializes register identity into the POS-Client header.
func BuildClientHeader(registerID, apiKey string) (string, error) {
	if registerID == "" {
		return "", errors.New("register ID is required")
	}

	dict := httpsfv.NewDictionary()
	dict.Add("register", httpsfv.NewItem(registerID))
	dict.Add("key", httpsfv.NewItem(apiKey))
	dict.Add("agent", httpsfv.NewItem(userAgent))

	return httpsfv.Marshal(dict)
}

// ParseClientHeader extracts the register ID from a POS-Client header.
// Used by tooling that inspects register traffic; parameters are ignored.
// Returns an error if the header is empty, malformed, or missing the
// register key.
func ParseClientHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("empty POS-Client header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return "", fmt.Errorf("invalid POS-Client header: %w", err)
	}

	member, ok := dict.Get("register")
	if !ok {
		return "", errors.New("register key not found in POS-Client header")
	}

	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", errors.New("register value must be an item")
	}

	id, ok := item.Value.(string)
	if !ok {
		return "", errors.New("register value must be a string")
	}

	return id, nil
}
