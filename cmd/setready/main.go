// Command setready bulk-graduates generated questions from draft to
// ready visibility, per category or across every category.
//
// Usage:
//
//	setready --categoryid=<id> [--dry-run]
//	setready --all [--dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"questiongen/pkg/questionbank"
)

func main() {
	categoryID := flag.String("categoryid", "", "category id to process")
	all := flag.Bool("all", false, "process every category")
	dryRun := flag.Bool("dry-run", false, "preview changes without writing")
	flag.Parse()

	if (*categoryID != "") == *all {
		fmt.Fprintln(os.Stderr, "exactly one of --categoryid or --all is required")
		flag.Usage()
		os.Exit(2)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(2)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	bank, err := questionbank.NewGormBank(db, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init question bank: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var categoryIDs []string
	if *all {
		categories, err := bank.ListCategories(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list categories: %v\n", err)
			os.Exit(1)
		}
		for _, c := range categories {
			categoryIDs = append(categoryIDs, c.ID)
		}
	} else {
		categoryIDs = []string{*categoryID}
	}

	changed, skipped, err := questionbank.GraduateDrafts(ctx, bank, categoryIDs, *dryRun, func(line string) {
		fmt.Println(line)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "graduate drafts: %v\n", err)
		os.Exit(1)
	}
	if *dryRun {
		fmt.Printf("dry-run: %d question(s) would become ready, %d skipped\n", changed, skipped)
		return
	}
	fmt.Printf("%d question(s) set to ready, %d skipped\n", changed, skipped)
}
