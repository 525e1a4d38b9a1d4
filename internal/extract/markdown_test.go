package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planDoc = `# 系统接入方案

## 目标
Connect the billing system.

## 接口映射
- POST /orders

## 待确认
- 鉴权方式是否为 OAuth2
- Rate limit per tenant

## 风险
- not an open item
`

func TestOutline(t *testing.T) {
	got := Outline(planDoc)
	require.Len(t, got, 5)
	assert.Equal(t, Section{Level: 1, Title: "系统接入方案"}, got[0])
	assert.Equal(t, Section{Level: 2, Title: "待确认"}, got[3])
}

func TestOutline_NoHeadings(t *testing.T) {
	assert.Empty(t, Outline("just a paragraph"))
}

func TestOpenItems(t *testing.T) {
	assert.Equal(t, []string{"鉴权方式是否为 OAuth2", "Rate limit per tenant"}, OpenItems(planDoc))
}

func TestOpenItems_EnglishHeading(t *testing.T) {
	doc := "## Open Questions\n\n1. Which region?\n2. Who owns the key?\n"
	assert.Equal(t, []string{"Which region?", "Who owns the key?"}, OpenItems(doc))
}

func TestOpenItems_Missing(t *testing.T) {
	assert.Nil(t, OpenItems("# Plan\n- a\n- b\n"))
}
