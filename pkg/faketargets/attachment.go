package faketargets

import (
	"encoding/base64"
	"fmt"

	"github.com/tidwall/gjson"
)

// decodeToolAttachment reads an upload sent through an attachment tool.
func decodeToolAttachment(args gjson.Result) (*Attachment, error) {
	name := args.Get("filename").String()
	if name == "" {
		return nil, fmt.Errorf("filename is required")
	}
	data, err := base64.StdEncoding.DecodeString(args.Get("content_base64").String())
	if err != nil {
		return nil, fmt.Errorf("content_base64: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("content_base64 is empty")
	}
	return &Attachment{
		Filename:    name,
		ContentType: args.Get("content_type").String(),
		Data:        data,
		Via:         "tool",
	}, nil
}
