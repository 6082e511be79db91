package dto

// Resp 是 HTTP 应答的统一外壳，业务码放在 body 里，HTTP 状态码恒为 200。
type Resp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

func Success(code int, data any) Resp {
	return Resp{Code: code, Data: data}
}

func Error(code int, msg string) Resp {
	return Resp{Code: code, Msg: msg}
}
