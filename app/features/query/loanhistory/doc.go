// Package loanhistory implements the List My Loan History use case.
//
// It lists every loan of one user in any status, newest first, including returned ones.
package loanhistory
