package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/model"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":     cmdLogin,
	"logout":    cmdLogout,
	"whoami":    cmdWhoami,
	"items":     cmdItems,
	"show":      cmdShow,
	"add":       cmdAdd,
	"edit":      cmdEdit,
	"rm":        cmdRemove,
	"checkout":  cmdCheckout,
	"return":    cmdReturn,
	"history":   cmdHistory,
	"open":      cmdOpen,
	"mine":      cmdMine,
	"checkouts": cmdCheckouts,
	"users":     cmdUsers,
	"useradd":   cmdUserAdd,
	"userdel":   cmdUserDel,
	"role":      cmdRole,
}

// Pages each command navigates to before it runs.
const (
	pathLogin     = "/login"
	pathDashboard = "/dashboard"
	pathAdmin     = "/admin"
	pathMyPage    = "/mypage"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

// itemID parses the single positional item ID of fs.
func itemID(fs *flag.FlagSet) (uuid.UUID, error) {
	if fs.NArg() != 1 {
		return uuid.Nil, fmt.Errorf("%w: %s <item-id>", errUsage, fs.Name())
	}
	return parseID("item", fs.Arg(0))
}

func parseID(kind, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s id %q", errUsage, kind, s)
	}
	return id, nil
}

// storeFailure prefers the store's user-facing message over err.
func storeFailure(a *app, err error) error {
	if msg := a.store.State().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login")
	var email, password string
	fs.StringVar(&email, "email", "", "")
	fs.StringVar(&password, "password", os.Getenv("IZPOSOJA_PASSWORD"), "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if email == "" || password == "" {
		return fmt.Errorf("%w: login -email <email> -password <password>", errUsage)
	}

	d, err := a.guard.Before(ctx, pathLogin)
	if err != nil {
		return err
	}
	if !d.Allowed() {
		fmt.Fprintf(a.out, "Already logged in as %s.\n", a.store.State().CurrentUser.Name)
		return nil
	}

	tok, err := a.client.Login(ctx, email, password)
	if err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}
	if err := a.tokens.SetToken(ctx, tok.AccessToken); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	a.guard.Invalidate()

	if err := a.navigate(ctx, pathDashboard); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s.\n", a.store.State().CurrentUser.Name)
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("logout"), args); err != nil {
		return err
	}
	if err := a.tokens.DeleteToken(ctx); err != nil {
		return fmt.Errorf("deleting access token: %w", err)
	}
	a.store.ClearSession()
	a.guard.Invalidate()
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("whoami"), args); err != nil {
		return err
	}
	if err := a.navigate(ctx, pathMyPage); err != nil {
		return err
	}
	u := a.store.State().CurrentUser
	fmt.Fprintf(a.out, "%s <%s>\nRole: %s\nID:   %s\n", u.Name, u.Email, u.Role, u.ID)
	return nil
}

func cmdItems(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("items")
	var page int
	fs.IntVar(&page, "page", 1, "")
	fs.IntVar(&page, "p", 1, "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.navigate(ctx, pathDashboard); err != nil {
		return err
	}

	a.store.FetchItems(ctx, page)
	st := a.store.State()
	if st.Error != "" {
		return errors.New(st.Error)
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tNAME\tSTATUS")
	for _, item := range st.Items {
		b := item.Base()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, item.Category(), b.Name, status(b, time.Now()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Page %d of %d (%s items)\n", st.CurrentPage, max(st.TotalPages(), 1), humanize.Comma(int64(st.TotalItems)))
	return nil
}

func status(b model.ItemBase, now time.Time) string {
	if b.Checkout == nil {
		return "available"
	}
	return fmt.Sprintf("checked out by %s %s", b.Checkout.CheckedOutBy.Name, humanize.RelTime(b.Checkout.CheckedOutAt, now, "ago", "from now"))
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("show")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := itemID(fs)
	if err != nil {
		return err
	}
	if err := a.navigate(ctx, pathDashboard); err != nil {
		return err
	}

	item, err := a.client.GetItem(ctx, id)
	if err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}

	b := item.Base()
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", b.ID)
	fmt.Fprintf(tw, "Category:\t%s\n", item.Category())
	fmt.Fprintf(tw, "Name:\t%s\n", b.Name)
	switch it := item.(type) {
	case model.Book:
		fmt.Fprintf(tw, "Author:\t%s\n", it.Author)
		fmt.Fprintf(tw, "ISBN:\t%s\n", it.ISBN)
	case model.Laptop:
		fmt.Fprintf(tw, "MAC address:\t%s\n", it.MACAddress)
	}
	if b.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", b.Description)
	}
	fmt.Fprintf(tw, "Status:\t%s\n", status(b, time.Now()))
	return tw.Flush()
}

// itemFields holds the item flags shared by add and edit.
type itemFields struct {
	category    string
	name        string
	description string
	author      string
	isbn        string
	mac         string
}

func (f *itemFields) register(fs *flag.FlagSet) {
	fs.StringVar(&f.category, "category", "", "")
	fs.StringVar(&f.category, "c", "", "")
	fs.StringVar(&f.name, "name", "", "")
	fs.StringVar(&f.name, "n", "", "")
	fs.StringVar(&f.description, "description", "", "")
	fs.StringVar(&f.description, "d", "", "")
	fs.StringVar(&f.author, "author", "", "")
	fs.StringVar(&f.isbn, "isbn", "", "")
	fs.StringVar(&f.mac, "mac", "", "")
}

func (f *itemFields) request() (model.ItemRequest, error) {
	switch model.Category(f.category) {
	case model.CategoryGeneral:
		return model.GeneralRequest{Name: f.name, Description: f.description}, nil
	case model.CategoryBook:
		return model.BookRequest{Name: f.name, Author: f.author, ISBN: f.isbn, Description: f.description}, nil
	case model.CategoryLaptop:
		return model.LaptopRequest{Name: f.name, MACAddress: f.mac, Description: f.description}, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownCategory, f.category)
}

// merge overlays the flags set on fs onto req. The category of an
// existing item cannot change.
func (f *itemFields) merge(fs *flag.FlagSet, req model.ItemRequest) (model.ItemRequest, error) {
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if (set["category"] || set["c"]) && model.Category(f.category) != req.Category() {
		return nil, fmt.Errorf("%w: %s to %s", model.ErrCategoryChange, req.Category(), f.category)
	}

	switch r := req.(type) {
	case model.GeneralRequest:
		f.apply(set, &r.Name, &r.Description)
		return r, nil
	case model.BookRequest:
		f.apply(set, &r.Name, &r.Description)
		if set["author"] {
			r.Author = f.author
		}
		if set["isbn"] {
			r.ISBN = f.isbn
		}
		return r, nil
	case model.LaptopRequest:
		f.apply(set, &r.Name, &r.Description)
		if set["mac"] {
			r.MACAddress = f.mac
		}
		return r, nil
	}
	return nil, fmt.Errorf("%w: %T", model.ErrUnknownCategory, req)
}

func (f *itemFields) apply(set map[string]bool, name, description *string) {
	if set["name"] || set["n"] {
		*name = f.name
	}
	if set["description"] || set["d"] {
		*description = f.description
	}
}

func cmdAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("add")
	var fields itemFields
	fields.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	req, err := fields.request()
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := a.navigate(ctx, pathAdmin); err != nil {
		return err
	}

	if err := a.store.CreateItem(ctx, req); err != nil {
		return storeFailure(a, err)
	}
	fmt.Fprintf(a.out, "Created %s %q.\n", req.Category(), fields.name)
	return nil
}

func cmdEdit(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("edit")
	var fields itemFields
	fields.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := itemID(fs)
	if err != nil {
		return err
	}
	if err := a.navigate(ctx, pathAdmin); err != nil {
		return err
	}

	item, err := a.client.GetItem(ctx, id)
	if err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}
	current, err := model.RequestFor(item)
	if err != nil {
		return err
	}
	req, err := fields.merge(fs, current)
	if err != nil {
		return err
	}

	if err := a.store.UpdateItem(ctx, id, req); err != nil {
		return storeFailure(a, err)
	}
	fmt.Fprintf(a.out, "Updated %s.\n", id)
	return nil
}

func cmdRemove(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("rm")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := itemID(fs)
	if err != nil {
		return err
	}
	if err := a.navigate(ctx, pathAdmin); err != nil {
		return err
	}

	if err := a.store.DeleteItem(ctx, id); err != nil {
		return storeFailure(a, err)
	}
	fmt.Fprintf(a.out, "Deleted %s.\n", id)
	return nil
}

func cmdCheckout(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("checkout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := itemID(fs)
	if err != nil {
		return err
	}
	if err := a.navigate(ctx, pathDashboard); err != nil {
		return err
	}

	if err := a.store.CheckoutItem(ctx, id); err != nil {
		return storeFailure(a, err)
	}
	fmt.Fprintf(a.out, "Checked out %s.\n", id)
	return nil
}

func cmdReturn(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("return")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := itemID(fs)
	if err != nil {
		return err
	}
	if err := a.navigate(ctx, pathDashboard); err != nil {
		return err
	}

	item, err := a.client.GetItem(ctx, id)
	if err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}
	co := item.Base().Checkout
	if co == nil {
		return fmt.Errorf("item %s is not checked out", id)
	}

	if err := a.store.ReturnItem(ctx, id, co.ID); err != nil {
		return storeFailure(a, err)
	}
	fmt.Fprintf(a.out, "Returned %s.\n", id)
	return nil
}

func cmdHistory(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("history")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := itemID(fs)
	if err != nil {
		return err
	}
	if err := a.navigate(ctx, pathDashboard); err != nil {
		return err
	}

	records, err := a.client.CheckoutHistory(ctx, id)
	if err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No checkouts.")
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECKOUT\tUSER\tCHECKED OUT\tRETURNED")
	for _, r := range records {
		returned := "-"
		if r.ReturnedAt != nil {
			returned = humanize.RelTime(*r.ReturnedAt, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.CheckedOutBy, humanize.RelTime(r.CheckedOutAt, now, "ago", "from now"), returned)
	}
	return tw.Flush()
}

func cmdOpen(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("open")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: open <path>", errUsage)
	}

	d, err := a.guard.Before(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if d.Allowed() {
		fmt.Fprintf(a.out, "%s: allowed\n", d.To.Path)
		return nil
	}
	target, _ := a.guard.Router().PathOf(d.Redirect)
	fmt.Fprintf(a.out, "%s: redirect to %s\n", d.To.Path, target)
	return nil
}

// printCheckouts lists active checkouts with the name of each item. An item
// that can no longer be fetched is shown by ID only.
func printCheckouts(ctx context.Context, a *app, records []model.CheckoutRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No checkouts.")
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tNAME\tUSER\tCHECKED OUT")
	for _, r := range records {
		name := "-"
		if item, err := a.client.GetItem(ctx, r.ItemID); err == nil {
			name = item.Base().Name
		} else {
			a.logger.DebugContext(ctx, "looking up checked out item", "item", r.ItemID, "error", err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ItemID, name, r.CheckedOutBy, humanize.RelTime(r.CheckedOutAt, now, "ago", "from now"))
	}
	return tw.Flush()
}

func cmdMine(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("mine"), args); err != nil {
		return err
	}
	if err := a.navigate(ctx, pathMyPage); err != nil {
		return err
	}

	records, err := a.client.MyCheckouts(ctx)
	if err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}
	return printCheckouts(ctx, a, records)
}

func cmdCheckouts(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("checkouts"), args); err != nil {
		return err
	}
	if err := a.navigate(ctx, pathDashboard); err != nil {
		return err
	}

	records, err := a.client.ActiveCheckouts(ctx)
	if err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}
	return printCheckouts(ctx, a, records)
}

func cmdUsers(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("users"), args); err != nil {
		return err
	}
	if err := a.navigate(ctx, pathAdmin); err != nil {
		return err
	}

	users, err := a.client.ListUsers(ctx)
	if err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
	}
	return tw.Flush()
}

func cmdUserAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("useradd")
	var req model.CreateUserRequest
	var admin bool
	fs.StringVar(&req.Name, "name", "", "")
	fs.StringVar(&req.Email, "email", "", "")
	fs.StringVar(&req.Password, "password", "", "")
	fs.BoolVar(&admin, "admin", false, "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: useradd -name <name> -email <email> -password <password> [-admin]: %v", errUsage, err)
	}
	if err := a.navigate(ctx, pathAdmin); err != nil {
		return err
	}

	u, err := a.client.CreateUser(ctx, req)
	if err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}
	if admin {
		if err := a.client.UpdateUserRole(ctx, u.ID, model.RoleAdmin); err != nil {
			return errors.New(a.normalizer.Normalize(err))
		}
		u.Role = model.RoleAdmin
	}
	fmt.Fprintf(a.out, "Created %s <%s> (%s) %s.\n", u.Name, u.Email, u.Role, u.ID)
	return nil
}

func cmdUserDel(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("userdel")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: userdel <user-id>", errUsage)
	}
	id, err := parseID("user", fs.Arg(0))
	if err != nil {
		return err
	}
	if err := a.navigate(ctx, pathAdmin); err != nil {
		return err
	}
	if me := a.store.State().CurrentUser; me != nil && me.ID == id {
		return errors.New("refusing to delete the logged-in user")
	}

	if err := a.client.DeleteUser(ctx, id); err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}
	fmt.Fprintf(a.out, "Deleted user %s.\n", id)
	return nil
}

func cmdRole(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("role")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: role <user-id> <Admin|User>", errUsage)
	}
	id, err := parseID("user", fs.Arg(0))
	if err != nil {
		return err
	}
	role, err := model.ParseRole(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := a.navigate(ctx, pathAdmin); err != nil {
		return err
	}

	if err := a.client.UpdateUserRole(ctx, id, role); err != nil {
		return errors.New(a.normalizer.Normalize(err))
	}
	fmt.Fprintf(a.out, "User %s is now %s.\n", id, role)
	return nil
}
