package htmldoc

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNormalizeEmpty(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("  \n\t "))
}

func TestNormalizeWrapsFragment(t *testing.T) {
	out := Normalize("  <p>hi</p>\n")

	assert.Equal(t, 1, strings.Count(strings.ToLower(out), "<!doctype html>"))
	assert.Equal(t, 1, strings.Count(out, "<head>"))
	assert.Equal(t, 1, strings.Count(out, "<body>"))
	assert.Contains(t, out, `<meta charset="UTF-8" />`)
	assert.Contains(t, out, `name="viewport"`)
	assert.Contains(t, out, "<title>Prototype</title>")
	assert.Contains(t, out, "<body>\n<p>hi</p>\n</body>")
	assert.True(t, strings.HasSuffix(out, "</html>"))
}

func TestNormalizeKeepsInteriorWhitespace(t *testing.T) {
	out := Normalize("<pre>\n  a\n    b\n</pre>")
	assert.Contains(t, out, "<pre>\n  a\n    b\n</pre>")
}

func TestNormalizeFullDocumentUnchanged(t *testing.T) {
	cases := []string{
		"<!doctype html><p>x</p>",
		"<!DOCTYPE html>\n<html><body>x</body></html>",
		"<HTML lang=\"en\"><body>x</body></HTML>",
		"<div>before</div><html>",
	}
	for _, in := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, in, Normalize("\n"+in+"  "))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"<p>hi</p>",
		"<button>Go</button>",
		"<!doctype html><html><head></head><body></body></html>",
		"plain text",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestIsFullDocument(t *testing.T) {
	assert.True(t, IsFullDocument("<html>"))
	assert.True(t, IsFullDocument("<html\nlang='en'>"))
	assert.True(t, IsFullDocument("<!DocType html>"))
	assert.False(t, IsFullDocument("<htmlish>"))
	assert.False(t, IsFullDocument("<div>html</div>"))
}

func TestAssembleEmptyHTML(t *testing.T) {
	assert.Equal(t, "", Assemble("", "body{}", "x()"))
	assert.Equal(t, "", Assemble("   ", "", ""))
}

func TestAssembleWithoutExtras(t *testing.T) {
	full := "<html><head></head><body><p>x</p></body></html>"
	assert.Equal(t, full, Assemble("  "+full+"\n", "", ""))
	assert.Equal(t, Normalize("<p>x</p>"), Assemble("<p>x</p>", " ", "\n"))
}

func TestAssembleInjectsIntoAnchors(t *testing.T) {
	out := Assemble("<html><head></head><body></body></html>", "body{color:red}", "console.log(1)")

	assert.Equal(t,
		"<html><head>\n<style>\nbody{color:red}\n</style>\n</head><body>\n<script>\nconsole.log(1)\n</script>\n</body></html>",
		out)
}

func TestAssembleAnchorsAreCaseInsensitive(t *testing.T) {
	out := Assemble("<HTML><HEAD></HEAD><BODY></BODY></HTML>", "a{}", "b()")
	assert.Contains(t, out, "</style>\n</HEAD>")
	assert.Contains(t, out, "</script>\n</BODY>")
}

func TestAssembleCSSFallsBackToBodyTag(t *testing.T) {
	out := Assemble(`<html><body class="x"><p>hi</p></body></html>`, "p{}", "")
	assert.Equal(t, `<html><body class="x">`+"\n<style>\np{}\n</style>\n"+`<p>hi</p></body></html>`, out)
}

func TestAssembleCSSWithoutAnyAnchorIsPrepended(t *testing.T) {
	out := Assemble("<!doctype html><p>hi</p>", "p{}", "")
	assert.Equal(t, "\n<style>\np{}\n</style>\n<!doctype html><p>hi</p>", out)
}

func TestAssembleJSWithoutBodyIsAppended(t *testing.T) {
	out := Assemble("<!doctype html><p>hi</p>", "", " go() ")
	assert.Equal(t, "<!doctype html><p>hi</p>\n<script>\ngo()\n</script>\n", out)
}

func TestAssembleUsesFirstAnchorOnly(t *testing.T) {
	in := "<html><head></head><body><!-- </body> --></body></html>"
	out := Assemble(in, "", "x()")

	assert.Equal(t, "<html><head></head><body><!-- \n<script>\nx()\n</script>\n</body> --></body></html>", out)
}

func TestAssembleDoesNotExpandReplacementPatterns(t *testing.T) {
	out := Assemble("<html><head></head><body></body></html>", "a::after{content:'$&'}", "s.replace(/x/, '$1')")
	assert.Contains(t, out, "content:'$&'")
	assert.Contains(t, out, "'$1'")
}

func TestAssembleFragmentWithScript(t *testing.T) {
	out := Assemble("<button>Go</button>", "", "alert(1)")

	require.True(t, IsFullDocument(out))
	bodyStart := strings.Index(out, "<body>")
	button := strings.Index(out, "<button>Go</button>")
	script := strings.Index(out, "<script>\nalert(1)\n</script>\n</body>")
	require.NotEqual(t, -1, bodyStart)
	require.NotEqual(t, -1, script)
	assert.Less(t, bodyStart, button)
	assert.Less(t, button, script)
}

func TestConcurrentUse(t *testing.T) {
	var g errgroup.Group
	want := Assemble("<p>0</p>", "p{}", "f()")
	for i := 0; i < 64; i++ {
		i := i
		g.Go(func() error {
			frag := "<p>0</p>"
			if got := Assemble(frag, "p{}", "f()"); got != want {
				return fmt.Errorf("goroutine %d: unexpected output", i)
			}
			if Normalize(Normalize(frag)) != Normalize(frag) {
				return fmt.Errorf("goroutine %d: normalize not idempotent", i)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
