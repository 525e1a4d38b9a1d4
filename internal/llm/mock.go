package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// MockBackend returns deterministic output shaped after the prompt it receives.
// It needs no network and backs tests, demos and the default configuration.
type MockBackend struct{}

// NewMockBackend returns a MockBackend.
func NewMockBackend() *MockBackend { return &MockBackend{} }

// Name implements Backend.
func (m *MockBackend) Name() string { return ModeMock }

// Chat implements Backend.
func (m *MockBackend) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	system := systemText(req.Messages)
	user := firstContent(req.Messages, RoleUser)
	raw := map[string]any{"mock": true}

	switch {
	case strings.Contains(strings.ToLower(user), "reply with exactly: pong"):
		return &ChatResponse{Content: "pong", Raw: raw}, nil
	case strings.Contains(system, "mxfile"):
		return &ChatResponse{Content: mockDrawio, Raw: raw}, nil
	case strings.Contains(system, "JSON"):
		var payload struct {
			DiagramType string `json:"diagram_type"`
			Text        string `json:"text"`
		}
		if err := json.Unmarshal([]byte(user), &payload); err != nil {
			payload.DiagramType, payload.Text = "flow", user
		}
		data, err := marshalNoEscape(mockSpec(payload.DiagramType, payload.Text))
		if err != nil {
			return nil, transportError(ModeMock, "encode spec", err)
		}
		return &ChatResponse{Content: data, Raw: raw}, nil
	}
	return &ChatResponse{Content: mockIntegrationPlan, Raw: raw}, nil
}

// mockSpec builds a fixed spec for the requested type. The note echoes the
// first 120 runes of the source text.
func mockSpec(diagramType, text string) map[string]any {
	note := text
	if r := []rune(note); len(r) > 120 {
		note = string(r[:120])
	}

	switch diagramType {
	case "sequence":
		return map[string]any{
			"type":         "sequence",
			"participants": []string{"用户", "产品智绘官", "模型"},
			"messages": []map[string]string{
				{"from": "用户", "to": "产品智绘官", "label": "提交描述"},
				{"from": "产品智绘官", "to": "模型", "label": "生成 Diagram Spec"},
				{"from": "模型", "to": "产品智绘官", "label": "返回 JSON"},
				{"from": "产品智绘官", "to": "用户", "label": "渲染 Mermaid"},
			},
			"note": note,
		}
	case "state":
		return map[string]any{
			"type":   "state",
			"states": []string{"Draft", "Reviewing", "Approved", "Rejected"},
			"transitions": []map[string]string{
				{"from": "Draft", "to": "Reviewing", "label": "submit"},
				{"from": "Reviewing", "to": "Approved", "label": "pass"},
				{"from": "Reviewing", "to": "Rejected", "label": "deny"},
			},
			"note": note,
		}
	case "cmic_report", "layered_report":
		return map[string]any{
			"type":                       "cmic_report",
			"title":                      "智能体平台总体架构图",
			"platform_labels":            []string{"消息智能体平台", "行业智能体平台", "企业 AI 中台"},
			"application_agents":         []string{"用户交互型智能体", "场景任务型智能体", "安全与治理型智能体", "可扩展智能体入口"},
			"agent_service_capabilities": []string{"多智能体协同与编排", "认知与决策引擎", "领域知识与知识体系", "多模型接入与调度", "通用智能组件能力池", "用户画像与标签"},
			"orchestration_capabilities": []string{"请求路由与策略调度", "业务系统接入适配", "消息 / 事件驱动", "生态与第三方能力接入"},
			"foundation_capabilities":    []string{"身份与权限管理", "注册、发现与授权机制", "安全与合规能力", "协议与协作标准"},
		}
	}
	return map[string]any{
		"type":      "flow",
		"direction": "TD",
		"nodes": []map[string]string{
			{"id": "start", "label": "开始"},
			{"id": "parse", "label": "解析文本"},
			{"id": "spec", "label": "生成 Diagram Spec"},
			{"id": "render", "label": "渲染 Mermaid"},
			{"id": "end", "label": "结束"},
		},
		"edges": []map[string]string{
			{"from": "start", "to": "parse", "label": ""},
			{"from": "parse", "to": "spec", "label": ""},
			{"from": "spec", "to": "render", "label": ""},
			{"from": "render", "to": "end", "label": ""},
		},
		"note": note,
	}
}

// marshalNoEscape encodes v as compact JSON without HTML escaping.
func marshalNoEscape(v any) (string, error) {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

const mockDrawio = `<mxfile host="pdc" agent="mock">
  <diagram id="mock-flow" name="Page-1">
    <mxGraphModel dx="800" dy="600" grid="1" gridSize="10">
      <root>
        <mxCell id="0"/>
        <mxCell id="1" parent="0"/>
        <mxCell id="2" value="开始" style="rounded=1;whiteSpace=wrap;html=1;" vertex="1" parent="1">
          <mxGeometry x="120" y="40" width="120" height="40" as="geometry"/>
        </mxCell>
        <mxCell id="3" value="结束" style="rounded=1;whiteSpace=wrap;html=1;" vertex="1" parent="1">
          <mxGeometry x="120" y="160" width="120" height="40" as="geometry"/>
        </mxCell>
        <mxCell id="4" edge="1" parent="1" source="2" target="3">
          <mxGeometry relative="1" as="geometry"/>
        </mxCell>
      </root>
    </mxGraphModel>
  </diagram>
</mxfile>`

const mockIntegrationPlan = "# 系统接入方案（Mock）\n\n" +
	"## 1. 角色与系统边界\n- 用户\n- A系统（调用方）\n- B系统（被调用方）\n\n" +
	"## 2. 调用链路\n1) A -> B：查询订单\n2) A -> B：发起退款\n3) B -> A：回调通知\n\n" +
	"## 3. 关键接口（示例）\n- GET /orders/{id}\n- POST /refunds\n- POST /callbacks/refund\n\n" +
	"## 4. 鉴权\n- 推荐：HMAC 或 OAuth2 Client Credentials\n\n" +
	"## 5. 幂等\n- 退款接口必须支持 Idempotency-Key\n\n" +
	"## 6. 异常与重试\n- 5xx 可退避重试；4xx 直接失败\n\n" +
	"## 7. 回调与对账\n- 回调必须签名；每日对账文件或查询接口\n\n" +
	"## 8. 监控告警\n- 成功率、耗时、回调堆积、对账差异\n\n" +
	"## 9. 待确认\n- 退款状态机、超时阈值、对账口径\n"
