package stringutil

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

func ToJsonString(v interface{}) (string, error) {
	var bytes []byte
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(bytes), nil
}

// NonEmpty returns a slice with all empty strings removed
func NonEmpty(elems []string) []string {
	var res []string
	for _, e := range elems {
		if e != "" {
			res = append(res, e)
		}
	}
	return res
}

func QuotedStrings(elems []string) []string {
	var quotedElems []string
	for _, arg := range elems {
		quotedElems = append(quotedElems, fmt.Sprintf("%q", arg))
	}
	return quotedElems
}

func Contains(slice []string, element string) bool {
	for _, e := range slice {
		if e == element {
			return true
		}
	}
	return false
}

// SplitLines splits text on newlines and drops the trailing empty
// element which strings.Split produces for newline-terminated text.
func SplitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
