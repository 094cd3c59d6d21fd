package host_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mna/mehl/internal/host"
	"github.com/mna/mehl/lang/ast"
	"github.com/mna/mehl/lang/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prim(name string, operand ast.Seq) ast.Seq {
	return ast.Seq{
		&ast.ListLit{Elems: []ast.Seq{
			{&ast.SymbolLit{Value: name}},
			operand,
		}},
		&ast.Name{Value: "✨"},
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MEHL_BUDGET", "7")
	t.Setenv("MEHL_SEED", "42")
	cfg, err := host.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Budget)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 100000, cfg.MaxTicks)
}

func TestHostRunWritesToOut(t *testing.T) {
	var body ast.Seq
	body = append(body, prim("send", ast.Seq{&ast.ListLit{Elems: []ast.Seq{
		prim("get-ambient", ast.Seq{&ast.SymbolLit{Value: "out"}}),
		{&ast.StringLit{Value: "hello"}},
	}}})...)
	body = append(body, prim("add", ast.Seq{&ast.ListLit{Elems: []ast.Seq{
		{&ast.IntLit{Value: 1}},
		{&ast.IntLit{Value: 2}},
	}}})...)

	var out bytes.Buffer
	h := host.New(host.Config{Budget: 100, MaxTicks: 1000, Seed: 1}, &out, strings.NewReader(""), nil)
	v, err := h.Run(&ast.Chunk{Name: "t", Body: body})
	require.NoError(t, err)
	assert.Equal(t, machine.Int(3), v)
	assert.Equal(t, "hello\n", out.String())
}

func TestHostRunReadsFromIn(t *testing.T) {
	body := prim("receive", prim("get-ambient", ast.Seq{&ast.SymbolLit{Value: "in"}}))

	var out bytes.Buffer
	h := host.New(host.Config{Budget: 100, MaxTicks: 1000}, &out, strings.NewReader("a line\n"), nil)
	v, err := h.Run(&ast.Chunk{Name: "t", Body: body})
	require.NoError(t, err)
	assert.Equal(t, machine.String("a line"), v)
}

func TestHostRunReportsPanic(t *testing.T) {
	body := prim("panic", ast.Seq{&ast.SymbolLit{Value: "boom"}})

	var out bytes.Buffer
	h := host.New(host.Config{Budget: 100, MaxTicks: 1000}, &out, strings.NewReader(""), nil)
	_, err := h.Run(&ast.Chunk{Name: "t", Body: body})
	var pe *host.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, machine.Symbol("boom"), pe.Value)
}
