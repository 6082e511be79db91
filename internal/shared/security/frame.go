package security

import (
	"bytes"
	"io"

	"github.com/go-think/openssl"
	"github.com/pierrec/lz4/v4"
)

// Zip 用 lz4 帧格式压缩一条 WS 消息。
func Zip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func UnZip(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

// AesCBCEncrypt 握手下发的 key 同时作为 iv，长度必须是 16/24/32。
func AesCBCEncrypt(src, key, iv []byte) ([]byte, error) {
	return openssl.AesCBCEncrypt(src, key, iv, openssl.PKCS7_PADDING)
}

func AesCBCDecrypt(src, key, iv []byte) ([]byte, error) {
	return openssl.AesCBCDecrypt(src, key, iv, openssl.PKCS7_PADDING)
}
