package prompt

import (
	"encoding/json"

	"github.com/rendis/pdc/pkg/schema"
)

// Worked examples of the expected output shape per diagram type. Keys are in
// the order models should emit them.
var schemaHints = map[schema.DiagramType]string{
	schema.DiagramFlow: `{"type":"flow","direction":"TD",` +
		`"nodes":[{"id":"n1","label":"开始"}],` +
		`"edges":[{"from":"n1","to":"n2","label":""}]}`,

	schema.DiagramSequence: `{"type":"sequence",` +
		`"participants":["用户","系统"],` +
		`"messages":[{"from":"用户","to":"系统","label":"发起请求"}]}`,

	schema.DiagramState: `{"type":"state",` +
		`"states":["Idle","Processing","Done"],` +
		`"transitions":[{"from":"Idle","to":"Processing","label":"start"}]}`,

	schema.DiagramLayeredReport: `{"type":"cmic_report","title":"智能体平台总体架构图",` +
		`"platform_labels":["消息智能体平台","行业智能体平台","企业 AI 中台","智能体协同操作系统"],` +
		`"application_agents":["用户交互型智能体","场景任务型智能体","安全与治理型智能体","可扩展智能体入口"],` +
		`"agent_service_capabilities":["多智能体协同与编排","认知与决策引擎","领域知识与知识体系","多模型接入与调度","通用智能组件能力池","用户画像与标签","场景能力 / 插件 / 应用货架"],` +
		`"orchestration_capabilities":["请求路由与策略调度","业务系统接入适配","消息 / 事件驱动","生态与第三方能力接入"],` +
		`"foundation_capabilities":["身份与权限管理","注册、发现与授权机制","安全与合规能力","协议与协作标准"]}`,
}

// SchemaHint returns the worked example for t, or the flow example for an
// unknown type.
func SchemaHint(t schema.DiagramType) json.RawMessage {
	if h, ok := schemaHints[t]; ok {
		return json.RawMessage(h)
	}
	return json.RawMessage(schemaHints[schema.DiagramFlow])
}
