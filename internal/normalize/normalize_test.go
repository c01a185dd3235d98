package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanStripsMarkup(t *testing.T) {
	in := `<html><body><p>Agent   closed the ticket</p><script>alert(1)</script><p>too early.</p></body></html>`
	assert.Equal(t, "Agent closed the ticket too early.", Clean(in))
}

func TestCleanPlainTextPassThrough(t *testing.T) {
	assert.Equal(t, "close-ovao tiket nakon rg-a", Clean("  close-ovao   tiket\nnakon rg-a  "))
}

func TestCleanEmptyInput(t *testing.T) {
	assert.Equal(t, "", Clean(""))
	assert.Equal(t, "", Clean("   \n\t "))
}

func TestCleanRemovesChrome(t *testing.T) {
	in := `<body><nav>menu</nav><p>substance</p><footer>legal</footer></body>`
	assert.Equal(t, "substance", Clean(in))
}

func TestCleanFragmentWithoutBody(t *testing.T) {
	got := Clean(`<p>prvi</p> <p>drugi</p>`)
	assert.Equal(t, "prvi drugi", got)
}
