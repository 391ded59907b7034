package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/apitest"
	"github.com/erazemk/izposoja/internal/model"
)

type cli struct {
	t   *testing.T
	env string
}

func newCLI(t *testing.T, baseURL string) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("IZPOSOJA_API_BASE_URL", baseURL)
	t.Setenv("IZPOSOJA_TOKEN_STORE", "sqlite")
	t.Setenv("IZPOSOJA_TOKEN_DB", filepath.Join(dir, "state", "state.db"))
	t.Setenv("IZPOSOJA_PASSWORD", "")
	return &cli{t: t, env: filepath.Join(dir, "missing.env")}
}

func (c *cli) run(args ...string) (code int, stdout, stderr string) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), append([]string{"-env", c.env}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Help(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"-h"}, &out, &errOut)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Usage: izposoja")
}

func TestRun_MissingConfiguration(t *testing.T) {
	c := newCLI(t, "")

	code, _, stderr := c.run("whoami")

	assert.Equal(t, 78, code)
	assert.Contains(t, stderr, "IZPOSOJA_API_BASE_URL")
}

func TestRun_UnknownCommand(t *testing.T) {
	srv := apitest.New(t)
	c := newCLI(t, srv.URL)

	code, _, stderr := c.run("frobnicate")

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestRun_GuardedCommandsNeedLogin(t *testing.T) {
	srv := apitest.New(t)
	c := newCLI(t, srv.URL)

	code, _, stderr := c.run("items")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "not logged in")
	assert.Zero(t, srv.Count(apitest.RouteListItems))

	code, stdout, _ := c.run("open", "/admin")
	assert.Equal(t, 0, code)
	assert.Equal(t, "/admin: redirect to /login\n", stdout)
}

func TestRun_LoginFailure(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Ana", "ana@example.com", "secret", model.RoleUser)
	c := newCLI(t, srv.URL)

	code, _, stderr := c.run("login", "-email", "ana@example.com", "-password", "wrong")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Login failed.")
}

func TestRun_UserSession(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Ana", "ana@example.com", "secret", model.RoleUser)
	laptop := srv.AddItem(model.Laptop{
		ItemBase:   model.ItemBase{Name: "ThinkPad"},
		MACAddress: "00:1a:2b:3c:4d:5e",
	})
	id := laptop.Base().ID.String()
	c := newCLI(t, srv.URL)

	code, stdout, stderr := c.run("login", "-email", "ana@example.com", "-password", "secret")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "Logged in as Ana.\n", stdout)

	code, stdout, _ = c.run("login", "-email", "ana@example.com", "-password", "secret")
	require.Equal(t, 0, code)
	assert.Equal(t, "Already logged in as Ana.\n", stdout)

	code, stdout, _ = c.run("whoami")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Ana <ana@example.com>")

	code, stdout, _ = c.run("items")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "ThinkPad")
	assert.Contains(t, stdout, "available")
	assert.Contains(t, stdout, "Page 1 of 1 (1 items)")

	code, _, stderr = c.run("add", "-c", "general", "-n", "Projector")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "insufficient permissions")

	code, stdout, stderr = c.run("checkout", id)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Checked out")

	code, _, stderr = c.run("checkout", id)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Item is already checked out.")

	for _, cmd := range []string{"mine", "checkouts"} {
		code, stdout, stderr = c.run(cmd)
		require.Equal(t, 0, code, stderr)
		assert.Contains(t, stdout, "ThinkPad", cmd)
		assert.Contains(t, stdout, id, cmd)
	}

	code, _, stderr = c.run("users")
	assert.Equal(t, 3, code)
	assert.Contains(t, stderr, "insufficient permissions")
	assert.Zero(t, srv.Count(apitest.RouteListUsers))

	code, stdout, _ = c.run("show", id)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "checked out by Ana")
	assert.Contains(t, stdout, "00:1a:2b:3c:4d:5e")

	code, _, stderr = c.run("return", id)
	require.Equal(t, 0, code, stderr)

	code, stdout, _ = c.run("history", id)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "CHECKOUT")
	assert.NotContains(t, stdout, "No checkouts.")

	code, stdout, _ = c.run("mine")
	require.Equal(t, 0, code)
	assert.Equal(t, "No checkouts.\n", stdout)

	code, stdout, _ = c.run("logout")
	require.Equal(t, 0, code)
	assert.Equal(t, "Logged out.\n", stdout)

	code, _, _ = c.run("whoami")
	assert.Equal(t, 3, code)
}

func TestRun_AdminManagesItems(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Root", "root@example.com", "secret", model.RoleAdmin)
	c := newCLI(t, srv.URL)

	code, _, stderr := c.run("login", "-email", "root@example.com", "-password", "secret")
	require.Equal(t, 0, code, stderr)

	code, _, stderr = c.run("add", "-c", "book", "-n", "Dune", "-author", "Frank Herbert", "-isbn", "9780441013593")
	require.Equal(t, 0, code, stderr)

	items := srv.Items()
	require.Len(t, items, 1)
	id := items[0].Base().ID.String()

	code, _, stderr = c.run("add", "-c", "book", "-n", "No author")
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, stderr)
	assert.Len(t, srv.Items(), 1)

	code, _, stderr = c.run("edit", "-n", "Dune Messiah", id)
	require.Equal(t, 0, code, stderr)
	item, ok := srv.Item(items[0].Base().ID)
	require.True(t, ok)
	book := item.(model.Book)
	assert.Equal(t, "Dune Messiah", book.Name)
	assert.Equal(t, "Frank Herbert", book.Author, "unset flags keep their values")

	updates := srv.Count(apitest.RouteUpdateItem)
	code, _, stderr = c.run("edit", "-c", "laptop", id)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "category")
	assert.Equal(t, updates, srv.Count(apitest.RouteUpdateItem))

	code, _, stderr = c.run("rm", id)
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, srv.Items())

	code, _, stderr = c.run("rm", "not-a-uuid")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "invalid item id")
}

func TestRun_AdminManagesUsers(t *testing.T) {
	srv := apitest.New(t)
	root := srv.AddUser("Root", "root@example.com", "secret", model.RoleAdmin)
	c := newCLI(t, srv.URL)

	code, _, stderr := c.run("login", "-email", "root@example.com", "-password", "secret")
	require.Equal(t, 0, code, stderr)

	code, _, stderr = c.run("useradd", "-name", "Bo", "-email", "not-an-email", "-password", "pw")
	assert.Equal(t, 2, code)
	assert.NotEmpty(t, stderr)
	assert.Zero(t, srv.Count(apitest.RouteCreateUser))

	code, stdout, stderr := c.run("useradd", "-name", "Bo", "-email", "bo@example.com", "-password", "pw", "-admin")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Created Bo <bo@example.com> (Admin)")
	fields := strings.Fields(stdout)
	boID := strings.TrimSuffix(fields[len(fields)-1], ".")

	code, _, stderr = c.run("useradd", "-name", "Bo", "-email", "bo@example.com", "-password", "pw")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Email is already registered.")

	code, stdout, stderr = c.run("role", boID, "user")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "User "+boID+" is now User.\n", stdout)

	code, stdout, _ = c.run("users")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "bo@example.com")
	assert.Contains(t, stdout, "root@example.com")

	code, _, stderr = c.run("role", boID, "owner")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "owner")

	code, _, stderr = c.run("userdel", root.ID.String())
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "logged-in user")

	code, stdout, stderr = c.run("userdel", boID)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "Deleted user "+boID+".\n", stdout)

	code, _, stderr = c.run("userdel", boID)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "User not found.")

	code, _, stderr = c.run("userdel", "nope")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "invalid user id")
}
