package ws

import (
	"errors"

	"github.com/go-viper/mapstructure/v2"
)

// BindJSON 将 WsMsgReq.Body.Msg 解码到目标结构体。Msg 是 json 解出来的
// map[string]any，按 json tag 对字段；实现了 TextUnmarshaler 的枚举直接接受字符串，
// 数字类型的字段也接受字符串（对局 id 超出 JS 精度，客户端按字符串传）。
func BindJSON(req *WsMsgReq, dst any) error {
	if req == nil || req.Body == nil {
		return errors.New("ws request body is nil")
	}
	return Decode(req.Body.Msg, dst)
}

func Decode(src, dst any) error {
	if src == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dst,
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
		Squash:           true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(src)
}
