// schema 按网关的操作表生成请求和应答的 JSON Schema，给客户端做校验和代码生成。
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"umpire/internal/game/viewsync"
	"umpire/internal/gate/app/model"
	"umpire/internal/gate/interfaces/handler"
)

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "", "schema 输出目录")
	flag.Parse()

	if outDir == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}
	for name, v := range messages() {
		if err := writeSchema(filepath.Join(outDir, name+".json"), buildSchema(name, v)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write schema %s: %v\n", name, err)
			os.Exit(1)
		}
	}
}

// messages 是所有要导出的消息：每个操作的请求和应答，外加服务端推送。
func messages() map[string]any {
	out := make(map[string]any)
	for _, op := range handler.Ops() {
		out[op.Name+".req"] = op.Req
		out[op.Name+".resp"] = op.Resp
	}
	out[handler.StreamDeltasOp+".req"] = new(model.SinceReq)
	out[handler.StreamDeltasOp+".resp"] = new(model.SubscribeResp)
	out[model.PushDelta] = new(viewsync.ViewDelta)
	out[model.PushStreamClosed] = new(model.StreamClosed)
	return out
}

func buildSchema(name string, v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(v)
	schema.Title = "umpire " + name
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	return os.Rename(tmpPath, outPath)
}
