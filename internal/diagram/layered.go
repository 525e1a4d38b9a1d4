package diagram

import (
	"strconv"
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// Per-layer item caps; items beyond the cap are dropped.
const (
	maxApplicationItems   = 8
	maxPlatformLabels     = 5
	maxServiceItems       = 10
	maxOrchestrationItems = 6
	maxFoundationItems    = 6
)

var reportStyles = []string{
	"%% --- CMIC Report Diagram Styles ---",
	"classDef cmic_outer fill:#EFF9F7,stroke:#2FA7A0,stroke-width:2px,color:#0B1F2A;",
	"classDef cmic_layer fill:#E3F4F1,stroke:#2FA7A0,stroke-width:1.5px,color:#0B1F2A;",
	"classDef cmic_title fill:#0E3A63,stroke:#0E3A63,stroke-width:1px,color:#FFFFFF;",
	"classDef cmic_body fill:#FFFFFF,stroke:#2FA7A0,stroke-width:1px,color:#22303A;",
	"classDef cmic_pill fill:#0E3A63,stroke:#0E3A63,stroke-width:1px,color:#FFFFFF;",
	"classDef cmic_sep fill:transparent,stroke:#B6C2CC,stroke-width:1px,color:transparent;",
	"",
}

var reportTrailer = []string{
	"%% --- Subgraph box styling ---",
	"style CMIC fill:#EFF9F7,stroke:#2FA7A0,stroke-width:2px",
	"style L1 fill:#E3F4F1,stroke:#2FA7A0,stroke-width:1.5px",
	"style L2 fill:#E3F4F1,stroke:#2FA7A0,stroke-width:1.5px",
	"style L3 fill:#E3F4F1,stroke:#2FA7A0,stroke-width:1.5px",
	"style L4 fill:#E3F4F1,stroke:#2FA7A0,stroke-width:1.5px",
	"linkStyle 0 stroke:#B6C2CC,stroke-width:1px,stroke-dasharray:4 3",
	"linkStyle 1 stroke:#B6C2CC,stroke-width:1px,stroke-dasharray:4 3",
	"linkStyle 2 stroke:#B6C2CC,stroke-width:1px,stroke-dasharray:4 3",
}

// reportWriter accumulates report lines.
type reportWriter struct {
	lines []string
}

func (w *reportWriter) add(lines ...string) {
	w.lines = append(w.lines, lines...)
}

// group emits a borderless row container holding one node per item.
func (w *reportWriter) group(id, prefix, class string, items []string) {
	w.add(`    subgraph `+id+`[" "]`, "      direction LR")
	for i, it := range items {
		w.add(`      ` + prefix + `_` + strconv.Itoa(i+1) + `["` + it + `"]:::` + class)
	}
	w.add("    end")
}

// layer opens a titled layer container with its title node.
func (w *reportWriter) layer(id, heading, titleID, title string) {
	w.add(`  subgraph `+id+`["`+heading+`"]`, "    direction TB", `    `+titleID+`["`+title+`"]:::cmic_title`)
}

// separator emits the dotted connector anchoring the next layer.
func (w *reportWriter) separator(id, from string) {
	w.add(`  `+id+`[" "]:::cmic_sep`, "  "+from+" -.-> "+id, "")
}

// RenderLayeredReport renders the fixed four-layer architecture report. Only
// leaf text varies with the spec; it never fails.
func RenderLayeredReport(spec *schema.LayeredReportSpec) string {
	w := &reportWriter{}

	w.add(`%%{init: {"flowchart": {"curve": "linear"}} }%%`, "flowchart TB", "")
	w.add(reportStyles...)

	title := strings.TrimSpace(spec.Title)
	if title == "" {
		title = schema.DefaultReportTitle
	}
	w.add(`subgraph CMIC["`+title+`"]`, "  direction TB", "")

	w.layer("L1", "1️⃣ 应用层（Application Layer）", "L1T", "应用层智能体入口")
	w.group("L1G", "APP", "cmic_body", layerItems(spec.ApplicationAgents, maxApplicationItems, schema.DefaultApplicationAgents))
	w.add("  end", "")
	w.separator("SEP1", "L1T")

	w.layer("L2", "2️⃣ 智能体服务层（Agent Service Layer）", "L2T", "平台能力中枢")
	w.group("L2P", "PLAT", "cmic_pill", layerItems(spec.PlatformLabels, maxPlatformLabels, schema.DefaultPlatformLabels))
	w.group("L2G", "SVC", "cmic_body", layerItems(spec.AgentServiceCapabilities, maxServiceItems, schema.DefaultServiceItems))
	w.add("  end", "")
	w.separator("SEP2", "L2T")

	w.layer("L3", "3️⃣ 调度与运行层（Orchestration Layer）", "L3T", "调度与运行能力")
	w.group("L3G", "ORCH", "cmic_body", layerItems(spec.OrchestrationCapabilities, maxOrchestrationItems, schema.DefaultOrchestrationItems))
	w.add("  end", "")
	w.separator("SEP3", "L3T")

	w.layer("L4", "4️⃣ 基础支撑层（Foundation Layer）", "L4T", "基础支撑能力")
	w.group("L4G", "FND", "cmic_body", layerItems(spec.FoundationCapabilities, maxFoundationItems, schema.DefaultFoundationItems))
	w.add("  end")

	w.add("end", "")
	w.add(reportTrailer...)

	return strings.Join(w.lines, "\n")
}

// layerItems trims items, skips blanks and stops at limit. No usable items
// yields a fresh copy of the template list.
func layerItems(items []string, limit int, defaults func() []string) []string {
	out := make([]string, 0, limit)
	for _, it := range items {
		s := strings.TrimSpace(it)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	if len(out) == 0 {
		return defaults()
	}
	return out
}
