package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"recordcore/internal/cli"
	"recordcore/internal/core"
	"recordcore/pkg/domain"
)

func loginCmd(rt *cli.Runtime) *cobra.Command {
	var name, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check a vet's credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vet, err := rt.App().Service.Authenticate(cmd.Context(), name, password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "authenticated as %s (%s)\n", vet.Name, vet.ID)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "vet name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func ownerCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "owner", Short: "Manage animal owners"}

	var owner domain.Owner
	add := &cobra.Command{
		Use:   "add",
		Short: "Register an owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, _, err := rt.App().Service.CreateOwner(cmd.Context(), owner)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "owner %s added (%s)\n", created.Name, created.ID)
			return err
		},
	}
	add.Flags().StringVar(&owner.Name, "name", "", "full name")
	add.Flags().StringVar(&owner.TaxID, "tax-id", "", "tax id")
	add.Flags().StringVar(&owner.Phone, "phone", "", "phone")
	add.Flags().StringVar(&owner.Address, "address", "", "address")
	add.Flags().StringVar(&owner.Email, "email", "", "email")

	var name string
	list := &cobra.Command{
		Use:   "list",
		Short: "List owners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owners, err := rt.App().Service.ListOwners(cmd.Context(), name)
			if err != nil {
				return err
			}
			t := core.Table{Headers: []string{"ID", "Name", "Phone", "Email"}}
			for _, o := range owners {
				t.Rows = append(t.Rows, []string{o.ID, o.Name, o.Phone, o.Email})
			}
			return cli.PrintTable(cmd.OutOrStdout(), t)
		},
	}
	list.Flags().StringVar(&name, "name", "", "name contains")

	var deleteID string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete an owner; their animals keep a dangling reference",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := rt.App().Service.DeleteOwner(cmd.Context(), deleteID)
			return err
		},
	}
	del.Flags().StringVar(&deleteID, "id", "", "owner id")

	cmd.AddCommand(add, list, del)
	return cmd
}

func animalCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "animal", Short: "Manage patients"}

	var animal domain.Animal
	var sex string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register an animal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			animal.Sex = domain.Sex(sex)
			created, _, err := rt.App().Service.CreateAnimal(cmd.Context(), animal)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "animal %s added (%s)\n", created.Name, created.ID)
			return err
		},
	}
	add.Flags().StringVar(&animal.Name, "name", "", "name")
	add.Flags().StringVar(&animal.Species, "species", "", "species")
	add.Flags().StringVar(&animal.Breed, "breed", "", "breed")
	add.Flags().IntVar(&animal.Age, "age", 0, "age in years")
	add.Flags().StringVar(&sex, "sex", "", "M or F")
	add.Flags().Float64Var(&animal.Weight, "weight", 0, "weight in kg")
	add.Flags().StringVar(&animal.OwnerID, "owner", "", "owner id")

	var name, ownerID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List animals with their owners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := rt.App().Service
			animals, err := svc.ListAnimals(cmd.Context(), name, ownerID)
			if err != nil {
				return err
			}
			t := core.Table{Headers: []string{"ID", "Name", "Species", "Owner", "Visits"}}
			for _, a := range animals {
				owner, err := svc.ResolveOwnerOf(cmd.Context(), a.ID)
				if err != nil {
					return err
				}
				t.Rows = append(t.Rows, []string{a.ID, a.Name, a.Species, owner.Name, strconv.Itoa(len(a.History))})
			}
			return cli.PrintTable(cmd.OutOrStdout(), t)
		},
	}
	list.Flags().StringVar(&name, "name", "", "name contains")
	list.Flags().StringVar(&ownerID, "owner", "", "owner id")

	cmd.AddCommand(add, list)
	return cmd
}

func vetCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "vet", Short: "Manage veterinarians"}

	var vet domain.Vet
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a vet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, _, err := rt.App().Service.CreateVet(cmd.Context(), vet)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "vet %s added (%s)\n", created.Name, created.ID)
			return err
		},
	}
	add.Flags().StringVar(&vet.Name, "name", "", "full name")
	add.Flags().StringVar(&vet.Specialty, "specialty", "", "specialty")
	add.Flags().StringVar(&vet.LicenseID, "license", "", "license id")
	add.Flags().StringVar(&vet.Password, "password", "", "login password")

	list := &cobra.Command{
		Use:   "list",
		Short: "List vets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vets, err := rt.App().Service.ListVets(cmd.Context())
			if err != nil {
				return err
			}
			t := core.Table{Headers: []string{"ID", "Name", "Specialty", "License"}}
			for _, v := range vets {
				t.Rows = append(t.Rows, []string{v.ID, v.Name, v.Specialty, v.LicenseID})
			}
			return cli.PrintTable(cmd.OutOrStdout(), t)
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func productCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "product", Short: "Manage stock"}

	var product domain.Product
	var kind, price, expiry string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a product with its opening quantity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			unitPrice, err := cli.ParseMoney("price", price)
			if err != nil {
				return err
			}
			product.UnitPrice = unitPrice
			product.Type = domain.ProductType(kind)
			if expiry != "" {
				at, err := cli.ParseTime("expiry", expiry)
				if err != nil {
					return err
				}
				product.Expiry = &at
			}
			created, advisories, err := rt.App().Service.CreateProduct(cmd.Context(), product)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "product %s added (%s)\n", created.Name, created.ID); err != nil {
				return err
			}
			return cli.PrintAdvisories(cmd.ErrOrStderr(), advisories)
		},
	}
	add.Flags().StringVar(&product.Name, "name", "", "product name")
	add.Flags().StringVar(&kind, "type", "", "medicine, feed, accessory or other")
	add.Flags().IntVar(&product.Quantity, "quantity", 0, "opening quantity")
	add.Flags().StringVar(&product.Unit, "unit", "", "unit of measure")
	add.Flags().StringVar(&price, "price", "", "unit price")
	add.Flags().StringVar(&expiry, "expiry", "", "expiry date (YYYY-MM-DD)")
	add.Flags().StringVar(&product.Notes, "notes", "", "notes")

	var name, listXLSX string
	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			products, err := rt.App().Service.ListProducts(cmd.Context(), name)
			if err != nil {
				return err
			}
			return printStock(cmd, rt, products, listXLSX)
		},
	}
	list.Flags().StringVar(&name, "name", "", "name contains")
	list.Flags().StringVar(&listXLSX, "xlsx", "", "write the list to this .xlsx file")

	var threshold int
	var lowXLSX string
	low := &cobra.Command{
		Use:   "low",
		Short: "List products at or below a quantity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := rt.App().Service
			var products []domain.Product
			var err error
			if cmd.Flags().Changed("threshold") {
				products, err = svc.LowStock(cmd.Context(), threshold)
			} else {
				products, err = svc.DefaultLowStock(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printStock(cmd, rt, products, lowXLSX)
		},
	}
	low.Flags().IntVar(&threshold, "threshold", 0, "quantity threshold (defaults to the configured warning level)")
	low.Flags().StringVar(&lowXLSX, "xlsx", "", "write the list to this .xlsx file")

	var moveID, moveNotes string
	var quantity int
	receive := &cobra.Command{
		Use:   "receive",
		Short: "Record an incoming delivery",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tx, advisories, err := rt.App().Service.ReceiveStock(cmd.Context(), moveID, quantity, moveNotes)
			if err != nil {
				return err
			}
			return printMovement(cmd, tx, advisories)
		},
	}
	receive.Flags().StringVar(&moveID, "id", "", "product id")
	receive.Flags().IntVar(&quantity, "quantity", 0, "units received")
	receive.Flags().StringVar(&moveNotes, "notes", "", "notes")

	var counted int
	adjust := &cobra.Command{
		Use:   "adjust",
		Short: "Set the quantity to a physical count",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tx, advisories, err := rt.App().Service.AdjustStock(cmd.Context(), moveID, counted, moveNotes)
			if err != nil {
				return err
			}
			if tx.ID == "" {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), "quantity unchanged"); err != nil {
					return err
				}
				return cli.PrintAdvisories(cmd.ErrOrStderr(), advisories)
			}
			return printMovement(cmd, tx, advisories)
		},
	}
	adjust.Flags().StringVar(&moveID, "id", "", "product id")
	adjust.Flags().IntVar(&counted, "counted", 0, "counted quantity")
	adjust.Flags().StringVar(&moveNotes, "notes", "", "notes")

	var txProduct, txFrom, txTo string
	movements := &cobra.Command{
		Use:   "movements",
		Short: "List stock movements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := core.StockFilter{ProductID: txProduct}
			var err error
			if filter.From, err = optionalTime("from", txFrom); err != nil {
				return err
			}
			if filter.To, err = optionalTime("to", txTo); err != nil {
				return err
			}
			if !filter.To.IsZero() {
				filter.To = cli.EndOfDay(filter.To)
			}
			txs, err := rt.App().Service.StockTransactions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			t := core.Table{Headers: []string{"Date", "Product", "Kind", "Quantity", "Before", "After", "Notes"}}
			for _, tx := range txs {
				t.Rows = append(t.Rows, []string{
					tx.Date.Format("2006-01-02 15:04"), tx.ProductName, string(tx.Kind),
					strconv.Itoa(tx.Quantity), strconv.Itoa(tx.QuantityBefore), strconv.Itoa(tx.QuantityAfter), tx.Notes,
				})
			}
			return cli.PrintTable(cmd.OutOrStdout(), t)
		},
	}
	movements.Flags().StringVar(&txProduct, "product", "", "product id")
	movements.Flags().StringVar(&txFrom, "from", "", "first day")
	movements.Flags().StringVar(&txTo, "to", "", "last day")

	cmd.AddCommand(add, list, low, receive, adjust, movements)
	return cmd
}

func printStock(cmd *cobra.Command, rt *cli.Runtime, products []domain.Product, xlsx string) error {
	app := rt.App()
	table := core.StockTable(products, app.Format)
	if xlsx == "" {
		return cli.PrintTable(cmd.OutOrStdout(), table)
	}
	key, err := app.Service.ExportTable(cmd.Context(), xlsx, table)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "stock written to %s (archived as %s)\n", xlsx, key)
	return err
}

func printMovement(cmd *cobra.Command, tx domain.StockTransaction, advisories []core.Advisory) error {
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s: %d -> %d\n", tx.Kind, tx.Quantity, tx.ProductName, tx.QuantityBefore, tx.QuantityAfter); err != nil {
		return err
	}
	return cli.PrintAdvisories(cmd.ErrOrStderr(), advisories)
}

func appointmentCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "appointment", Short: "Schedule and track appointments"}

	var appt domain.Appointment
	var vetID, at string
	schedule := &cobra.Command{
		Use:   "schedule",
		Short: "Book a pending appointment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scheduled, err := cli.ParseTime("at", at)
			if err != nil {
				return err
			}
			appt.ScheduledAt = scheduled
			if vetID != "" {
				appt.VetID = &vetID
			}
			created, _, err := rt.App().Service.ScheduleAppointment(cmd.Context(), appt)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "appointment scheduled for %s (%s)\n", created.ScheduledAt.Format("2006-01-02 15:04"), created.ID)
			return err
		},
	}
	schedule.Flags().StringVar(&appt.AnimalID, "animal", "", "animal id")
	schedule.Flags().StringVar(&vetID, "vet", "", "vet id")
	schedule.Flags().StringVar(&at, "at", "", "date and time (YYYY-MM-DD HH:MM)")
	schedule.Flags().StringVar(&appt.ConsultationType, "type", "", "consultation type")

	var filter core.AppointmentFilter
	var status, from, to string
	list := &cobra.Command{
		Use:   "list",
		Short: "List appointments with animal, owner and vet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := rt.App().Service
			filter.Status = domain.AppointmentStatus(status)
			var err error
			if filter.From, err = optionalTime("from", from); err != nil {
				return err
			}
			if filter.To, err = optionalTime("to", to); err != nil {
				return err
			}
			if !filter.To.IsZero() {
				filter.To = cli.EndOfDay(filter.To)
			}
			appts, err := svc.ListAppointments(cmd.Context(), filter)
			if err != nil {
				return err
			}
			t := core.Table{Headers: []string{"ID", "When", "Animal", "Owner", "Vet", "Type", "Status"}}
			for _, a := range appts {
				parties, err := svc.ResolveAppointmentParties(cmd.Context(), a.ID)
				if err != nil {
					return err
				}
				t.Rows = append(t.Rows, []string{
					a.ID, a.ScheduledAt.Format("2006-01-02 15:04"), parties.Animal.Name,
					parties.Owner.Name, parties.Vet.Name, a.ConsultationType, string(a.Status),
				})
			}
			return cli.PrintTable(cmd.OutOrStdout(), t)
		},
	}
	list.Flags().StringVar(&status, "status", "", "pending, confirmed, performed or cancelled")
	list.Flags().StringVar(&filter.VetID, "vet", "", "vet id")
	list.Flags().StringVar(&filter.AnimalID, "animal", "", "animal id")
	list.Flags().StringVar(&from, "from", "", "first day")
	list.Flags().StringVar(&to, "to", "", "last day")

	var id string
	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a pending appointment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			updated, err := rt.App().Service.ConfirmAppointment(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "appointment %s\n", updated.Status)
			return err
		},
	}
	confirm.Flags().StringVar(&id, "id", "", "appointment id")

	cancel := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an open appointment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			updated, err := rt.App().Service.CancelAppointment(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "appointment %s\n", updated.Status)
			return err
		},
	}
	cancel.Flags().StringVar(&id, "id", "", "appointment id")

	cmd.AddCommand(schedule, list, confirm, cancel)
	return cmd
}

func visitCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "visit", Short: "Close service visits"}

	var visit core.ServiceVisit
	var fee string
	var items []string
	closeCmd := &cobra.Command{
		Use:   "close",
		Short: "Price a visit, append it to the animal's history and draw down stock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := rt.App()
			amount, err := cli.ParseMoney("fee", fee)
			if err != nil {
				return err
			}
			visit.ConsultationFee = amount
			visit.Items = visit.Items[:0]
			for _, raw := range items {
				item, err := cli.ParseItem(raw)
				if err != nil {
					return err
				}
				visit.Items = append(visit.Items, item)
			}
			outcome, err := app.Service.CloseServiceVisit(cmd.Context(), visit)
			if err != nil {
				return err
			}
			rec := outcome.Record
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "visit closed by %s: consultation %s, products %s, total %s\n",
				rec.PerformedByName, app.Format.Money(rec.ConsultationFee), app.Format.Money(rec.TotalProducts), app.Format.Money(rec.GrandTotal)); err != nil {
				return err
			}
			return cli.PrintAdvisories(cmd.ErrOrStderr(), outcome.Advisories)
		},
	}
	closeCmd.Flags().StringVar(&visit.AppointmentID, "appointment", "", "appointment id")
	closeCmd.Flags().StringVar(&fee, "fee", "", "consultation fee")
	closeCmd.Flags().StringArrayVar(&items, "item", nil, "consumed product as name:quantity:unit-price (repeatable)")
	closeCmd.Flags().StringVar(&visit.Notes, "notes", "", "clinical notes")
	closeCmd.Flags().StringVar(&visit.PerformerID, "performer", "", "vet id (defaults to the appointment's vet)")

	cmd.AddCommand(closeCmd)
	return cmd
}

func historyCmd(rt *cli.Runtime) *cobra.Command {
	var filter core.HistoryFilter
	var from, to, xlsx string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List service records across animals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := rt.App()
			var err error
			if filter.From, err = optionalTime("from", from); err != nil {
				return err
			}
			if filter.To, err = optionalTime("to", to); err != nil {
				return err
			}
			if !filter.To.IsZero() {
				filter.To = cli.EndOfDay(filter.To)
			}
			rows, err := app.Service.ServiceHistory(cmd.Context(), filter)
			if err != nil {
				return err
			}
			table := core.ServiceHistoryTable(rows, app.Format)
			if xlsx == "" {
				return cli.PrintTable(cmd.OutOrStdout(), table)
			}
			key, err := app.Service.ExportTable(cmd.Context(), xlsx, table)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "history written to %s (archived as %s)\n", xlsx, key)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day")
	cmd.Flags().StringVar(&to, "to", "", "last day")
	cmd.Flags().StringVar(&filter.PerformerID, "performer", "", "vet id")
	cmd.Flags().StringVar(&filter.AnimalID, "animal", "", "animal id")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "write the history to this .xlsx file")
	return cmd
}

func recordCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "record", Short: "Printable service records"}

	var animalID, out string
	var ordinal int
	render := &cobra.Command{
		Use:   "render",
		Short: "Write one service record of an animal to a PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := rt.App().Service.RenderServiceRecord(cmd.Context(), animalID, ordinal, out)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "record written to %s (archived as %s)\n", out, key)
			return err
		},
	}
	render.Flags().StringVar(&animalID, "animal", "", "animal id")
	render.Flags().IntVar(&ordinal, "ordinal", 1, "position in the animal's history, as listed by history")
	render.Flags().StringVar(&out, "out", "", "target .pdf file")

	cmd.AddCommand(render)
	return cmd
}

func optionalTime(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return cli.ParseTime(field, raw)
}
