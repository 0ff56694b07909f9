package database

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoEmbedding is returned when extra data carries no face embedding.
var ErrNoEmbedding = errors.New("extra data has no face embedding")

// EncodeFaceExtraData serializes a face embedding into the PhotoTag extra data format.
// A nil embedding gives an empty string.
func EncodeFaceExtraData(embedding []float32) (string, error) {
	if embedding == nil {
		return "", nil
	}
	data, err := json.Marshal(map[string][]float32{ExtraDataEmbeddingKey: embedding})
	if err != nil {
		return "", fmt.Errorf("marshal face extra data: %w", err)
	}
	return string(data), nil
}

// DecodeFaceEmbedding extracts the face embedding from PhotoTag extra data.
func DecodeFaceEmbedding(extraData string) ([]float32, error) {
	if extraData == "" {
		return nil, ErrNoEmbedding
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extraData), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal face extra data: %w", err)
	}

	raw, ok := fields[ExtraDataEmbeddingKey]
	if !ok {
		return nil, ErrNoEmbedding
	}

	var embedding []float32
	if err := json.Unmarshal(raw, &embedding); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", ExtraDataEmbeddingKey, err)
	}
	if len(embedding) == 0 {
		return nil, ErrNoEmbedding
	}
	return embedding, nil
}
