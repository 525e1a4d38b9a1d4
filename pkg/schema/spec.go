package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// DiagramType is the discriminator of the Spec union.
type DiagramType string

const (
	DiagramFlow          DiagramType = "flow"
	DiagramSequence      DiagramType = "sequence"
	DiagramState         DiagramType = "state"
	DiagramLayeredReport DiagramType = "layered_report"
)

// LayeredReportTag is the wire tag models are asked to emit for layered reports.
// It is accepted as an alias of DiagramLayeredReport.
const LayeredReportTag = "cmic_report"

// DiagramTypes lists every supported variant in display order.
var DiagramTypes = []DiagramType{DiagramFlow, DiagramSequence, DiagramState, DiagramLayeredReport}

// ParseDiagramType normalizes a raw type tag. The second return value is false
// when the tag is not a known variant.
func ParseDiagramType(raw string) (DiagramType, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == LayeredReportTag {
		return DiagramLayeredReport, true
	}
	t := DiagramType(s)
	return t, t.Valid()
}

// Valid reports whether t is one of the known variants.
func (t DiagramType) Valid() bool {
	switch t {
	case DiagramFlow, DiagramSequence, DiagramState, DiagramLayeredReport:
		return true
	}
	return false
}

// WireTag returns the tag used in prompts and model output for t.
func (t DiagramType) WireTag() string {
	if t == DiagramLayeredReport {
		return LayeredReportTag
	}
	return string(t)
}

// FlowNode is a declared flowchart node.
type FlowNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// FlowEdge connects two node ids. Endpoints need not be declared nodes.
type FlowEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// FlowSpec describes a flowchart.
type FlowSpec struct {
	Direction string     `json:"direction"`
	Nodes     []FlowNode `json:"nodes"`
	Edges     []FlowEdge `json:"edges"`
	Note      string     `json:"note,omitempty"`
}

// SequenceMessage is one arrow between two participants.
type SequenceMessage struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// SequenceSpec describes a sequence diagram. Participant order is display order.
type SequenceSpec struct {
	Participants []string          `json:"participants"`
	Messages     []SequenceMessage `json:"messages"`
	Note         string            `json:"note,omitempty"`
}

// StateTransition moves between two states.
type StateTransition struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// StateSpec describes a state diagram.
type StateSpec struct {
	States      []string          `json:"states"`
	Transitions []StateTransition `json:"transitions"`
	Note        string            `json:"note,omitempty"`
}

// LayeredReportSpec fills the text slots of the fixed four-layer report.
// ApplyDefaults fills absent or empty fields from the built-in template.
type LayeredReportSpec struct {
	Title                     string   `json:"title"`
	PlatformLabels            []string `json:"platform_labels"`
	ApplicationAgents         []string `json:"application_agents"`
	AgentServiceCapabilities  []string `json:"agent_service_capabilities"`
	OrchestrationCapabilities []string `json:"orchestration_capabilities"`
	FoundationCapabilities    []string `json:"foundation_capabilities"`
}

// DefaultReportTitle titles a layered report that has none.
const DefaultReportTitle = "智能体平台总体架构图"

var (
	defaultApplicationAgents = []string{"用户交互型智能体", "场景任务型智能体", "安全与治理型智能体", "可扩展入口"}
	defaultPlatformLabels    = []string{"消息智能体平台", "行业智能体平台", "企业 AI 中台", "智能体协同操作系统"}
	defaultServiceItems      = []string{
		"多智能体协同与编排",
		"认知与决策引擎",
		"领域知识与知识体系",
		"多模型接入与调度",
		"通用智能组件能力池",
		"用户画像与标签",
	}
	defaultOrchestrationItems = []string{"请求路由与策略调度", "业务系统接入适配", "消息/事件驱动", "生态与第三方接入"}
	defaultFoundationItems    = []string{"身份与权限管理", "注册/发现/授权机制", "安全与合规能力", "协议与协作标准"}
)

// Template lists of the layered report. Each call returns a fresh slice.
func DefaultApplicationAgents() []string  { return slices.Clone(defaultApplicationAgents) }
func DefaultPlatformLabels() []string     { return slices.Clone(defaultPlatformLabels) }
func DefaultServiceItems() []string       { return slices.Clone(defaultServiceItems) }
func DefaultOrchestrationItems() []string { return slices.Clone(defaultOrchestrationItems) }
func DefaultFoundationItems() []string    { return slices.Clone(defaultFoundationItems) }

// ApplyDefaults trims the title and every list item, drops blank items and
// replaces an empty title or list with the template value.
func (r *LayeredReportSpec) ApplyDefaults() {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		r.Title = DefaultReportTitle
	}
	r.PlatformLabels = NonBlank(r.PlatformLabels, defaultPlatformLabels)
	r.ApplicationAgents = NonBlank(r.ApplicationAgents, defaultApplicationAgents)
	r.AgentServiceCapabilities = NonBlank(r.AgentServiceCapabilities, defaultServiceItems)
	r.OrchestrationCapabilities = NonBlank(r.OrchestrationCapabilities, defaultOrchestrationItems)
	r.FoundationCapabilities = NonBlank(r.FoundationCapabilities, defaultFoundationItems)
}

// NonBlank returns the trimmed non-blank items, or a copy of fallback when
// none remain.
func NonBlank(items, fallback []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return slices.Clone(fallback)
	}
	return out
}

// Spec is the validated diagram specification. Exactly one variant pointer
// matching Type is non-nil.
type Spec struct {
	Type          DiagramType
	Flow          *FlowSpec
	Sequence      *SequenceSpec
	State         *StateSpec
	LayeredReport *LayeredReportSpec
}

// NewFlowSpec wraps a flow variant.
func NewFlowSpec(f *FlowSpec) *Spec { return &Spec{Type: DiagramFlow, Flow: f} }

// NewSequenceSpec wraps a sequence variant.
func NewSequenceSpec(s *SequenceSpec) *Spec { return &Spec{Type: DiagramSequence, Sequence: s} }

// NewStateSpec wraps a state variant.
func NewStateSpec(s *StateSpec) *Spec { return &Spec{Type: DiagramState, State: s} }

// NewLayeredReportSpec wraps a layered report variant.
func NewLayeredReportSpec(r *LayeredReportSpec) *Spec {
	return &Spec{Type: DiagramLayeredReport, LayeredReport: r}
}

// Variant returns the active variant value.
func (s *Spec) Variant() any {
	switch s.Type {
	case DiagramFlow:
		return s.Flow
	case DiagramSequence:
		return s.Sequence
	case DiagramState:
		return s.State
	case DiagramLayeredReport:
		return s.LayeredReport
	}
	return nil
}

// MarshalJSON emits the active variant with its type tag inlined.
func (s *Spec) MarshalJSON() ([]byte, error) {
	switch s.Type {
	case DiagramFlow:
		return json.Marshal(struct {
			Type DiagramType `json:"type"`
			*FlowSpec
		}{s.Type, s.Flow})
	case DiagramSequence:
		return json.Marshal(struct {
			Type DiagramType `json:"type"`
			*SequenceSpec
		}{s.Type, s.Sequence})
	case DiagramState:
		return json.Marshal(struct {
			Type DiagramType `json:"type"`
			*StateSpec
		}{s.Type, s.State})
	case DiagramLayeredReport:
		return json.Marshal(struct {
			Type DiagramType `json:"type"`
			*LayeredReportSpec
		}{s.Type, s.LayeredReport})
	}
	return nil, fmt.Errorf("marshal spec: unsupported type %q", s.Type)
}
