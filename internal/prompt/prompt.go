// Package prompt composes the messages sent to text-generation backends.
// Every function is pure: same inputs, same messages.
package prompt

import (
	"encoding/json"
	"strings"

	"github.com/rendis/pdc/internal/llm"
	"github.com/rendis/pdc/pkg/schema"
)

const diagramSystem = "你是资深产品/系统分析助手。\n" +
	"你只输出严格 JSON（不要 markdown，不要解释）。\n" +
	"输出必须是单个 JSON 对象：第一字符是 {，最后字符是 }。\n" +
	"必须包含字段 type，且 type 必须等于输入的 diagram_type。\n" +
	"根据输入文本提取结构化图规范（Diagram Spec）。\n" +
	"必须可用于生成 Mermaid。"

const layeredReportSystem = "你是一名企业级 AI 平台架构图设计专家。\n" +
	"你只输出严格 JSON（不要 markdown，不要解释）。\n" +
	"输出必须是单个 JSON 对象：第一字符是 {，最后字符是 }。\n" +
	"必须包含字段 type，且 type 必须等于输入的 diagram_type（cmic_report）。\n" +
	"你要做的是：在固定的分层架构图结构里，产出用于‘替换填充’的文案字段。\n" +
	"不要出现代码、不要出现实现细节、不要出现具体产品品牌名（强调平台能力）。\n" +
	"文案要适合 PPT/方案文档，短句、克制、可汇报。\n" +
	"输出字段（必须包含）：\n" +
	"- title: 图标题（1 行）\n" +
	"- platform_labels: 平台命名短语列表（3~5 个）\n" +
	"- application_agents: 应用层智能体入口（4~8 个）\n" +
	"- agent_service_capabilities: 服务层能力颗粒度（6~10 个）\n" +
	"- orchestration_capabilities: 调度与运行层（4~6 个）\n" +
	"- foundation_capabilities: 基础支撑层（4~6 个）\n" +
	"注意：整张图的结构由系统固定渲染，你只负责输出这些可替换的文案。"

const drawioSystem = "你是资深架构图绘制助手，熟悉 draw.io（diagrams.net）文件格式。\n" +
	"你只输出一个完整的 draw.io XML 文档（不要 markdown，不要解释）。\n" +
	"文档必须以 <mxfile 开头、以 </mxfile> 结尾。\n" +
	"根元素 mxfile 下至少包含一个 <diagram> 子元素，内含 mxGraphModel。\n" +
	"根据输入文本中的步骤、角色与关系绘制节点和连线，节点文字使用输入语言。"

const integrationSystem = "你是资深对接方案架构师。输出 Markdown 方案（可直接粘贴到产品方案文档）。\n" +
	"内容必须包含：角色与系统边界、调用链路、关键接口、鉴权、幂等、异常与重试、回调/对账、监控告警、落地步骤。\n" +
	"若缺少信息，请用‘待确认’列出问题。"

// Ping probe wording; backends are expected to answer "pong".
const (
	pingSystem = "You are a helpful assistant."
	pingUser   = "Reply with exactly: pong"
)

// DiagramMessages builds the system instruction and user payload for a
// diagram request. Layered reports get their own system instruction and are
// tagged with their wire tag. An empty scene is sent as null.
func DiagramMessages(t schema.DiagramType, text, scene string) []llm.Message {
	system := diagramSystem
	if t == schema.DiagramLayeredReport {
		system = layeredReportSystem
	}

	var sceneValue *string
	if strings.TrimSpace(scene) != "" {
		sceneValue = &scene
	}

	payload := struct {
		DiagramType string          `json:"diagram_type"`
		Scene       *string         `json:"scene"`
		Text        string          `json:"text"`
		Example     json.RawMessage `json:"output_schema_example"`
	}{
		DiagramType: t.WireTag(),
		Scene:       sceneValue,
		Text:        text,
		Example:     SchemaHint(t),
	}
	return []llm.Message{llm.System(system), llm.User(encode(payload))}
}

// DrawioMessages asks for a single draw.io document describing text.
func DrawioMessages(text string) []llm.Message {
	payload := struct {
		Text string `json:"text"`
	}{text}
	return []llm.Message{llm.System(drawioSystem), llm.User(encode(payload))}
}

// IntegrationMessages asks for a Markdown integration plan. An empty swagger
// text is sent as null.
func IntegrationMessages(text, swagger string) []llm.Message {
	var swaggerValue *string
	if strings.TrimSpace(swagger) != "" {
		swaggerValue = &swagger
	}
	payload := struct {
		Text        string  `json:"text"`
		SwaggerText *string `json:"swagger_text"`
	}{text, swaggerValue}
	return []llm.Message{llm.System(integrationSystem), llm.User(encode(payload))}
}

// PingMessages is the connectivity probe.
func PingMessages() []llm.Message {
	return []llm.Message{llm.System(pingSystem), llm.User(pingUser)}
}

// encode marshals v without HTML escaping so '<', '>' and '&' in the source
// text reach the model verbatim.
func encode(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	// Payloads are built from strings and raw JSON constants only.
	_ = enc.Encode(v)
	return strings.TrimSuffix(b.String(), "\n")
}
