package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lii16com/arkilino/internal/domain"
	"github.com/lii16com/arkilino/internal/mirror"
)

func viewFrom(c *cli.Context) *mirror.View {
	return c.App.Metadata["view"].(*mirror.View)
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "products",
			Usage: "show the catalog",
			Action: func(c *cli.Context) error {
				v := viewFrom(c)
				source := v.Start(c.Context)
				fmt.Printf("🛍  catalog (%s):\n", source)
				for _, p := range v.Products() {
					fmt.Printf("  %-4s %-24s %8d  [%s]\n", p.ID, p.Title, p.Price, p.Category)
					for _, e := range p.Extras {
						fmt.Printf("       + %s %d\n", e.Name, e.Price)
					}
				}
				return nil
			},
		},
		{
			Name:      "push-products",
			Usage:     "replace the catalog with a JSON array from a file (admin)",
			ArgsUsage: "FILE",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return cli.Exit("expected a catalog file", 2)
				}
				raw, err := os.ReadFile(c.Args().First())
				if err != nil {
					return err
				}
				var products []domain.Product
				if err := json.Unmarshal(raw, &products); err != nil {
					return fmt.Errorf("catalog must be a JSON array of products: %w", err)
				}
				v := viewFrom(c)
				v.Start(c.Context)
				if err := v.ReplaceProducts(c.Context, products); err != nil {
					return err
				}
				fmt.Printf("✅ catalog replaced (%d products)\n", len(products))
				return nil
			},
		},
		{
			Name:      "checkout",
			Usage:     "place an order",
			ArgsUsage: "PRODUCT_ID[:QTY[:EXTRA,EXTRA]]...",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Usage: "customer name"},
				&cli.StringFlag{Name: "phone", Usage: "customer phone"},
				&cli.StringFlag{Name: "addr", Usage: "delivery address", Required: true},
			},
			Action: func(c *cli.Context) error {
				v := viewFrom(c)
				v.Start(c.Context)
				profile := rememberProfile(v, c.String("name"), c.String("phone"))

				lines, err := parseCart(v.Products(), c.Args().Slice())
				if err != nil {
					return err
				}
				order, err := v.Checkout(c.Context, lines, domain.Customer{
					Name:    profile.Name,
					Phone:   profile.Phone,
					Address: c.String("addr"),
				})
				if err != nil {
					return err
				}
				v.Flush()
				fmt.Printf("✅ order %s placed, total %d (%s)\n", v.CurrentOrderID(order.ID), order.Total, order.Status)
				return nil
			},
		},
		{
			Name:  "chat",
			Usage: "talk with the shop",
			Subcommands: []*cli.Command{
				{
					Name:      "send",
					ArgsUsage: "TEXT",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "user", Usage: "thread to write to (admin replies)"},
						&cli.BoolFlag{Name: "admin", Usage: "send as the shop"},
						&cli.StringFlag{Name: "name"},
						&cli.StringFlag{Name: "phone"},
					},
					Action: func(c *cli.Context) error {
						v := viewFrom(c)
						userID := c.String("user")
						name, phone := c.String("name"), c.String("phone")
						if !c.Bool("admin") {
							profile := rememberProfile(v, name, phone)
							userID, name, phone = profile.UserID, profile.Name, profile.Phone
						}
						if userID == "" {
							return cli.Exit("--user is required for admin replies", 2)
						}
						if _, err := v.SendChat(c.Context, userID, strings.Join(c.Args().Slice(), " "), c.Bool("admin"), name, phone); err != nil {
							return err
						}
						fmt.Println("✅ sent")
						return nil
					},
				},
				{
					Name:  "show",
					Usage: "print a thread (admin: --user, or every thread summary)",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "user"},
					},
					Action: func(c *cli.Context) error {
						v := viewFrom(c)
						userID := c.String("user")
						if userID == "" {
							userID = v.Profile().UserID
						}
						if c.String("pin") != "" {
							snap, err := v.PullAll(c.Context)
							if err != nil {
								return err
							}
							if c.String("user") == "" {
								for _, s := range snap.Threads {
									fmt.Printf("💬 %s %s %s (%d)\n", s.UserID, s.Name, s.Phone, s.Count)
								}
								return nil
							}
						} else {
							v.Start(c.Context)
						}
						t := v.Thread(userID)
						fmt.Printf("💬 %s %s %s\n", t.UserID, t.Name, t.Phone)
						for _, m := range t.Messages {
							who := "customer"
							if m.Admin {
								who = "shop"
							}
							fmt.Printf("  [%s] %s\n", who, m.Text)
						}
						return nil
					},
				},
			},
		},
		{
			Name:  "orders",
			Usage: "pull and list all orders (admin)",
			Action: func(c *cli.Context) error {
				snap, err := viewFrom(c).PullAll(c.Context)
				if err != nil {
					return err
				}
				for _, o := range snap.Orders {
					fmt.Printf("📦 %s  %s  %-20s %8d  %s\n",
						o.ID, o.CreatedAt.Format("2006-01-02 15:04"), o.Customer.Name, o.Total, o.Status)
				}
				return nil
			},
		},
		{
			Name:      "status",
			Usage:     "set an order's status (admin); STATUS is 1-4 or the label",
			ArgsUsage: "ORDER_ID STATUS",
			Action: func(c *cli.Context) error {
				if c.NArg() != 2 {
					return cli.Exit("expected ORDER_ID STATUS", 2)
				}
				status, err := parseStatus(c.Args().Get(1))
				if err != nil {
					return err
				}
				v := viewFrom(c)
				v.Start(c.Context)
				if err := v.SetOrderStatus(c.Context, c.Args().Get(0), status); err != nil {
					return err
				}
				fmt.Printf("✅ %s → %s\n", c.Args().Get(0), status)
				return nil
			},
		},
	}
}

func rememberProfile(v *mirror.View, name, phone string) mirror.Profile {
	p := v.Profile()
	changed := false
	if name != "" && name != p.Name {
		p.Name, changed = name, true
	}
	if phone != "" && phone != p.Phone {
		p.Phone, changed = phone, true
	}
	if changed {
		_ = v.SaveProfile(p)
	}
	return p
}

// parseCart reads PRODUCT_ID[:QTY[:EXTRA,EXTRA]] arguments.
func parseCart(catalog []domain.Product, args []string) ([]mirror.CartLine, error) {
	byID := make(map[string]domain.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}
	var lines []mirror.CartLine
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 3)
		p, ok := byID[parts[0]]
		if !ok {
			return nil, fmt.Errorf("unknown product %q", parts[0])
		}
		line := mirror.CartLine{Product: p, Quantity: 1}
		if len(parts) > 1 && parts[1] != "" {
			qty, err := strconv.Atoi(parts[1])
			if err != nil || qty < 1 {
				return nil, fmt.Errorf("invalid quantity in %q", arg)
			}
			line.Quantity = qty
		}
		if len(parts) > 2 {
			for _, name := range strings.Split(parts[2], ",") {
				extra, ok := findExtra(p, name)
				if !ok {
					return nil, fmt.Errorf("product %s has no extra %q", p.ID, name)
				}
				line.Extras = append(line.Extras, extra)
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func findExtra(p domain.Product, name string) (domain.Extra, bool) {
	for _, e := range p.Extras {
		if e.Name == name {
			return e, true
		}
	}
	return domain.Extra{}, false
}

func parseStatus(arg string) (domain.OrderStatus, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(domain.OrderStatuses) {
			return "", fmt.Errorf("status number must be 1-%d", len(domain.OrderStatuses))
		}
		return domain.OrderStatuses[n-1], nil
	}
	status := domain.OrderStatus(arg)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown status %q", arg)
	}
	return status, nil
}
