// Package treasury synthesizes price histories for retail treasury savings bonds.
//
// Savings bonds are not quoted on any market: their value on a given day is the
// emission price plus the interest accrued so far. The issuer publishes a
// spreadsheet listing, for every series, its sale window, emission price,
// maturity and the interest rates (or interest amounts) of each accrual period.
//
// The package provides:
//   - Reference: the parsed form of a held instrument symbol like "ROR0127.19",
//     where the optional suffix is the day of month the bond was bought.
//   - Series: one row of the issuer's table.
//   - Builder: the accrual algorithm turning a Series and a purchase day into a
//     dated price timeline, either one point per accrual period or one point per
//     day up to today.
//
// Fetching the spreadsheet lives in package workbook, reading it in package
// catalog, and reconciling schedules with recorded quotes in package tracker.
package treasury
