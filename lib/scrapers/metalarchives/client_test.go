package metalarchives

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSessionCookie(t *testing.T) {
	cookies := ParseSessionCookie("PHPSESSID=abc123; cf_clearance=tok=en; ")
	require.Equal(t, []*http.Cookie{
		{Name: "PHPSESSID", Value: "abc123"},
		{Name: "cf_clearance", Value: "tok=en"},
	}, cookies)

	require.Nil(t, ParseSessionCookie(""))
	require.Nil(t, ParseSessionCookie("garbage"))
}
