package domain

import "encoding/json"

// DecodeRecord decodes a stored AddressRecord. CloseDates must be a sequence.
func DecodeRecord(dataset, key string, raw json.RawMessage) (AddressRecord, error) {
	var rec AddressRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return AddressRecord{}, &StorageError{Op: "decode", Path: dataset + "/" + key, Err: err}
	}
	if rec.CloseDates == nil {
		rec.CloseDates = []string{}
	}
	return rec, nil
}

// DecodeRecords decodes a whole dataset subtree.
func DecodeRecords(dataset string, raw map[string]json.RawMessage) (map[string]AddressRecord, error) {
	out := make(map[string]AddressRecord, len(raw))
	for k, v := range raw {
		rec, err := DecodeRecord(dataset, k, v)
		if err != nil {
			return nil, err
		}
		out[k] = rec
	}
	return out, nil
}

func DecodeListing(dataset, key string, raw json.RawMessage) (Listing, error) {
	var l Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, &StorageError{Op: "decode", Path: dataset + "/" + key, Err: err}
	}
	return l, nil
}
