package gallery

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Keys of a gallery file entry.
const (
	fieldStatus           = "status"
	fieldLastSeenLocation = "last_seen_location"
	fieldEncoding         = "encoding"
	fieldExtra            = "extra"
)

// reservedMetaKeys cannot be set through "extra": "name" carries the label in
// API responses and the others have their own fields.
var reservedMetaKeys = map[string]bool{
	MetaName:             true,
	MetaStatus:           true,
	MetaLastSeenLocation: true,
}

// FileSource reads a gallery from a YAML (or JSON) file shaped as
//
//	Jane Doe:
//	  status: Missing since 2024-10-01
//	  last_seen_location: Central City Park
//	  encoding: [-0.09, 0.12, ...]
//	  extra:
//	    case_number: "2024-117"
//
// Document order is gallery order.
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed gallery source.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Identities reads and parses the file.
func (s *FileSource) Identities(ctx context.Context) ([]Identity, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading gallery file: %w", err)
	}
	return Parse(data)
}

// Parse decodes gallery file content. It walks yaml.Node trees instead of
// decoding into a map so that entry order survives.
func Parse(data []byte) ([]Identity, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Index: -1, Reason: fmt.Sprintf("invalid gallery document: %v", err)}
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ConfigError{Index: -1, Reason: "gallery document must be a mapping of label to entry"}
	}

	identities := make([]Identity, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		index := i / 2
		label := root.Content[i].Value
		id, err := parseEntry(index, label, root.Content[i+1])
		if err != nil {
			return nil, err
		}
		identities = append(identities, id)
	}
	return identities, nil
}

func parseEntry(index int, label string, node *yaml.Node) (Identity, error) {
	fail := func(format string, args ...any) (Identity, error) {
		return Identity{}, &ConfigError{Index: index, Label: label, Reason: fmt.Sprintf(format, args...)}
	}

	if node.Kind != yaml.MappingNode {
		return fail("entry must be a mapping")
	}

	id := Identity{Label: label, Metadata: Metadata{}}
	for j := 0; j+1 < len(node.Content); j += 2 {
		key, value := node.Content[j].Value, node.Content[j+1]
		switch key {
		case fieldStatus, fieldLastSeenLocation:
			if value.Kind != yaml.ScalarNode {
				return fail("%s must be a string", key)
			}
			id.Metadata[key] = value.Value
		case fieldEncoding:
			if err := value.Decode(&id.Descriptor); err != nil {
				return fail("encoding must be a list of numbers: %v", err)
			}
		case fieldExtra:
			var extra map[string]string
			if err := value.Decode(&extra); err != nil {
				return fail("extra must be a mapping of strings: %v", err)
			}
			for k, v := range extra {
				if reservedMetaKeys[k] {
					return fail("extra key %q is reserved", k)
				}
				id.Metadata[k] = v
			}
		default:
			return fail("unknown field %q", key)
		}
	}

	if id.Descriptor == nil {
		return fail("encoding is missing")
	}
	return id, nil
}

// Marshal renders identities in the gallery file format, preserving order.
// Encodings are written in flow style with shortest round-trip float formatting.
func Marshal(identities []Identity) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	for _, id := range identities {
		entry := &yaml.Node{Kind: yaml.MappingNode}
		addScalar := func(key, value string) {
			entry.Content = append(entry.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: key},
				&yaml.Node{Kind: yaml.ScalarNode, Value: value},
			)
		}

		if v, ok := id.Metadata[MetaStatus]; ok {
			addScalar(fieldStatus, v)
		}
		if v, ok := id.Metadata[MetaLastSeenLocation]; ok {
			addScalar(fieldLastSeenLocation, v)
		}

		enc := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, v := range id.Descriptor {
			enc.Content = append(enc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(v, 'g', -1, 64)})
		}
		entry.Content = append(entry.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: fieldEncoding}, enc)

		extra := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range slices.Sorted(maps.Keys(id.Metadata)) {
			if reservedMetaKeys[k] {
				continue
			}
			extra.Content = append(extra.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: k},
				&yaml.Node{Kind: yaml.ScalarNode, Value: id.Metadata[k], Style: yaml.DoubleQuotedStyle},
			)
		}
		if len(extra.Content) > 0 {
			entry.Content = append(entry.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: fieldExtra}, extra)
		}

		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: id.Label}, entry)
	}

	out, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encoding gallery: %w", err)
	}
	return out, nil
}
