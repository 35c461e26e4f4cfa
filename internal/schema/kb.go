package schema

import "encoding/json"

// KbDocument validates a raw KB document (an array of records) and returns the
// records as raw messages for normalization by the caller.
func (v *Validator) KbDocument(raw []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage
	if err := v.decodeShaped(TargetKbDocument, raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}
