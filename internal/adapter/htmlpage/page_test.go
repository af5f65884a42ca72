package htmlpage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><head><title> Senior Engineer | Acme </title><script>var x = 1;</script></head>
<body>
  <h1 class="title">  Senior   Engineer </h1>
  <ul class="cards">
    <li data-job-id="101"><a href="/jobs/view/101/">One</a></li>
    <li data-job-id=""><a href="/jobs/view/102/">Two</a></li>
    <li><a>Three</a></li>
  </ul>
  <div class="desc">
    <p>We build   things.</p>
    <ul><li>Go</li><li>AWS <b>Lambda</b></li></ul>
    <div><br></div>
    <p>Apply now</p>
  </div>
</body></html>`

func TestPage(t *testing.T) {
	p, err := New("https://example.test/jobs/view/101/", fixture)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test/jobs/view/101/", p.URL())
	assert.Equal(t, "Senior Engineer | Acme", p.Title())

	title, ok := p.Text("h1.title")
	assert.True(t, ok)
	assert.Equal(t, "Senior Engineer", title)

	_, ok = p.Text(".missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"101"}, p.Attr("li", "data-job-id"))
	assert.Equal(t, []string{"/jobs/view/101/", "/jobs/view/102/"}, p.Attr("ul.cards a", "href"))
	assert.Equal(t, []string{"One", "Two", "Three"}, p.TextAll("ul.cards a"))
}

func TestPage_BlockText(t *testing.T) {
	p, err := New("", fixture)
	require.NoError(t, err)

	text, ok := p.BlockText(".desc")
	require.True(t, ok)
	assert.Equal(t, "We build things.\n• Go\n• AWS Lambda\nApply now", text)
}

func TestPage_StripsScripts(t *testing.T) {
	p, err := New("", fixture)
	require.NoError(t, err)

	head, _ := p.Text("head")
	assert.NotContains(t, head, "var x")
}
