package ws

import (
	"encoding/json"

	"umpire/internal/shared/security"
)

// EncodeFrame 把消息体编成一帧：json，握手给了 key 时 AES 加密，最后 lz4 压缩。
// 服务端和客户端共用。
func EncodeFrame(body any, key string) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if data, err = security.AesCBCEncrypt(data, []byte(key), []byte(key)); err != nil {
			return nil, err
		}
	}
	return security.Zip(data)
}

func DecodeFrame(frame []byte, key string, dst any) error {
	data, err := security.UnZip(frame)
	if err != nil {
		return err
	}
	if key != "" {
		if data, err = security.AesCBCDecrypt(data, []byte(key), []byte(key)); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, dst)
}
