package stack

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	hashLen     = 8
	maxHumanLen = 240
	maxIDLen    = 255

	// hiddenID components are dropped from logical ids entirely.
	hiddenID = "Default"
	// hiddenFromHumanID components only contribute to the hash.
	hiddenFromHumanID = "Resource"
)

// MakeUniqueID derives a CloudFormation logical id from construct path
// components.
//
//	MakeUniqueID([]string{"Bucket"})                        // "Bucket"
//	MakeUniqueID([]string{"Trigger", "Handler", "Resource"}) // "TriggerHandler" + 8 hex chars
func MakeUniqueID(components []string) (string, error) {
	filtered := make([]string, 0, len(components))
	for _, c := range components {
		if c != hiddenID {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return "", fmt.Errorf("%w: unable to derive a logical id from an empty path", ErrInvalidID)
	}

	if len(filtered) == 1 {
		candidate := removeNonAlphanumeric(filtered[0])
		if candidate != "" && len(candidate) <= maxIDLen {
			return candidate, nil
		}
	}

	var human strings.Builder
	for _, c := range removeDupes(filtered) {
		if c == hiddenFromHumanID {
			continue
		}
		human.WriteString(removeNonAlphanumeric(c))
	}
	h := human.String()
	if len(h) > maxHumanLen {
		h = h[:maxHumanLen]
	}
	return h + pathHash(filtered), nil
}

// UniqueID applies MakeUniqueID to the node's path below its stack.
func UniqueID(n *Node) (string, error) {
	var until *Node
	if n.stack != nil {
		until = n.stack.node
	}
	return MakeUniqueID(n.components(until))
}

func pathHash(components []string) string {
	sum := md5.Sum([]byte(strings.Join(components, PathSeparator)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:hashLen]
}

// removeDupes drops a component when the previous one already ends with it,
// so "Bucket/Bucket" and "DataBucket/Bucket" read naturally.
func removeDupes(path []string) []string {
	var out []string
	for _, c := range path {
		if len(out) == 0 || !strings.HasSuffix(out[len(out)-1], c) {
			out = append(out, c)
		}
	}
	return out
}

func removeNonAlphanumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
