package payload

import "encoding/json"

// Format serializes p into the tag-wrapped wire format.
func Format(p *GeneratedProject) (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	return StartTag + "\n" + string(data) + "\n" + EndTag, nil
}
