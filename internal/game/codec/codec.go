// Package codec 负责对局快照的落盘格式：msgpack 编码，lz4 压缩，blake3 校验。
package codec

import (
	"bytes"
	"encoding/hex"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
	"lukechampine.com/blake3"

	"umpire/modules/kit/errx"
)

var (
	ErrEncode   = errx.NewSys("CODEC_ENCODE", "快照编码失败")
	ErrDecode   = errx.NewSys("CODEC_DECODE", "快照解码失败")
	ErrChecksum = errx.NewSys("CODEC_CHECKSUM", "快照校验和不匹配")
)

// Marshal 复用 json tag，和线上协议保持同一套字段名。
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, ErrEncode.WithCause(err)
	}
	return buf.Bytes(), nil
}

func Unmarshal(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(v); err != nil {
		return ErrDecode.WithCause(err)
	}
	return nil
}

func Compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, ErrEncode.WithCause(err)
	}
	if err := w.Close(); err != nil {
		return nil, ErrEncode.WithCause(err)
	}
	return buf.Bytes(), nil
}

func Decompress(b []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(b)))
	if err != nil {
		return nil, ErrDecode.WithCause(err)
	}
	return out, nil
}

// Checksum 是压缩后字节的 blake3-256，十六进制。
func Checksum(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Pack 编码并压缩，返回负载和校验和。
func Pack(v any) ([]byte, string, error) {
	raw, err := Marshal(v)
	if err != nil {
		return nil, "", err
	}
	payload, err := Compress(raw)
	if err != nil {
		return nil, "", err
	}
	return payload, Checksum(payload), nil
}

// Unpack 先校验再解压解码。checksum 为空时跳过校验。
func Unpack(payload []byte, checksum string, v any) error {
	if checksum != "" && Checksum(payload) != checksum {
		return ErrChecksum.WithDataMap(map[string]any{"want": checksum, "got": Checksum(payload)})
	}
	raw, err := Decompress(payload)
	if err != nil {
		return err
	}
	return Unmarshal(raw, v)
}
