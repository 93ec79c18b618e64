// Package codec serializes wire values such as schnorr.WireProof in one of
// several interchange formats.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

// Codec names.
const (
	JSON    = "json"
	MsgPack = "msgpack"
	CBOR    = "cbor"
	YAML    = "yaml"
	TOML    = "toml"
	BSON    = "bson"
)

// SerializerError represents serialization errors
type SerializerError struct {
	Operation string
	CodecType string
	Err       error
}

func (e *SerializerError) Error() string {
	return fmt.Sprintf("codec: %s failed for codec %s: %v", e.Operation, e.CodecType, e.Err)
}

func (e *SerializerError) Unwrap() error {
	return e.Err
}

// Serializer encodes and decodes values with one codec.
type Serializer struct {
	codecType string
}

// NewSerializer creates a serializer for codecType. The name is case
// insensitive; an empty name selects JSON.
func NewSerializer(codecType string) (*Serializer, error) {
	name := strings.ToLower(codecType)
	if name == "" {
		name = JSON
	}
	switch name {
	case JSON, MsgPack, CBOR, YAML, TOML, BSON:
		return &Serializer{codecType: name}, nil
	default:
		return nil, &SerializerError{
			Operation: "create",
			CodecType: codecType,
			Err:       fmt.Errorf("unsupported codec type: %s", codecType),
		}
	}
}

// SupportedCodecs lists the accepted codec names.
func SupportedCodecs() []string {
	return []string{JSON, MsgPack, CBOR, YAML, TOML, BSON}
}

// Name returns the codec name.
func (s *Serializer) Name() string {
	return s.codecType
}

// Binary reports whether the codec output is not printable text.
func (s *Serializer) Binary() bool {
	switch s.codecType {
	case MsgPack, CBOR, BSON:
		return true
	default:
		return false
	}
}

// Marshal serializes v to bytes
func (s *Serializer) Marshal(v any) ([]byte, error) {
	var data []byte
	var err error

	switch s.codecType {
	case JSON:
		data, err = json.Marshal(v)
	case MsgPack:
		data, err = msgpack.Marshal(v)
	case CBOR:
		data, err = cbor.Marshal(v)
	case YAML:
		data, err = yaml.Marshal(v)
	case TOML:
		buf := new(bytes.Buffer)
		err = toml.NewEncoder(buf).Encode(v)
		data = buf.Bytes()
	case BSON:
		data, err = bson.Marshal(v)
	}

	if err != nil {
		return nil, &SerializerError{
			Operation: "marshal",
			CodecType: s.codecType,
			Err:       err,
		}
	}
	return data, nil
}

// Unmarshal deserializes data into v
func (s *Serializer) Unmarshal(data []byte, v any) error {
	var err error

	switch s.codecType {
	case JSON:
		err = json.Unmarshal(data, v)
	case MsgPack:
		err = msgpack.Unmarshal(data, v)
	case CBOR:
		err = cbor.Unmarshal(data, v)
	case YAML:
		err = yaml.Unmarshal(data, v)
	case TOML:
		err = toml.Unmarshal(data, v)
	case BSON:
		err = bson.Unmarshal(data, v)
	}

	if err != nil {
		return &SerializerError{
			Operation: "unmarshal",
			CodecType: s.codecType,
			Err:       err,
		}
	}
	return nil
}
