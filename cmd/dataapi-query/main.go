// dataapi-query sends a statement to a Data API endpoint and prints the JSON
// response.
//
//	dataapi-query -p id=long:3 -p name=hello "SELECT * FROM doc WHERE id = :id OR name = :name"
//	dataapi-query -begin
//	dataapi-query -commit <transactionId>
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tomyedwab/dataapi/dataapi/client"
	"github.com/tomyedwab/dataapi/dataapi/types"
)

type paramFlags []types.SqlParameter

func (p *paramFlags) String() string {
	names := make([]string, len(*p))
	for i, param := range *p {
		names[i] = param.Name
	}
	return strings.Join(names, ",")
}

func (p *paramFlags) Set(s string) error {
	param, err := parseParam(s)
	if err != nil {
		return err
	}
	*p = append(*p, param)
	return nil
}

// parseParam parses name=value or name=kind:value. Kinds are long, double,
// bool, blob (base64), null and string, which is the default.
func parseParam(s string) (types.SqlParameter, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return types.SqlParameter{}, fmt.Errorf("parameter %q must be name=value", s)
	}
	param := types.SqlParameter{Name: name}

	kind, value, typed := strings.Cut(raw, ":")
	if !typed {
		param.Value = types.StringValue(raw)
		return param, nil
	}
	switch kind {
	case "long":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return param, fmt.Errorf("parameter %s: %w", name, err)
		}
		param.Value = types.LongValue(n)
	case "double":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return param, fmt.Errorf("parameter %s: %w", name, err)
		}
		param.Value = types.DoubleValue(f)
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return param, fmt.Errorf("parameter %s: %w", name, err)
		}
		param.Value = types.BooleanValue(b)
	case "blob":
		data, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return param, fmt.Errorf("parameter %s: %w", name, err)
		}
		param.Value = types.BlobValue(data)
	case "null":
		param.Value = types.NullValue()
	case "string":
		param.Value = types.StringValue(value)
	default:
		// Not a known kind, so the colon is part of the string.
		param.Value = types.StringValue(raw)
	}
	return param, nil
}

func main() {
	var params paramFlags
	endpoint := flag.String("endpoint", "http://localhost:8080", "Data API endpoint")
	resourceARN := flag.String("resource-arn", os.Getenv("RESOURCE_ARN"), "Cluster resource ARN")
	secretARN := flag.String("secret-arn", os.Getenv("SECRET_ARN"), "Secret ARN")
	database := flag.String("database", "", "Database to select before running")
	txID := flag.String("tx", "", "Run inside this transaction")
	metadata := flag.Bool("metadata", false, "Include column metadata")
	begin := flag.Bool("begin", false, "Begin a transaction and print its id")
	commit := flag.String("commit", "", "Commit the given transaction")
	rollback := flag.String("rollback", "", "Roll back the given transaction")
	timeout := flag.Duration("timeout", 30*time.Second, "Request timeout")
	flag.Var(&params, "p", "Parameter as name=value or name=kind:value (repeatable)")
	flag.Parse()

	c, err := client.New(client.Config{
		Endpoint:    *endpoint,
		ResourceARN: *resourceARN,
		SecretARN:   *secretARN,
		Database:    *database,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var out any
	switch {
	case *begin:
		var id string
		id, err = c.BeginTransaction(ctx)
		out = types.BeginTransactionResponse{TransactionID: id}
	case *commit != "":
		var status string
		status, err = c.CommitTransaction(ctx, *commit)
		out = types.EndTransactionResponse{TransactionStatus: status}
	case *rollback != "":
		var status string
		status, err = c.RollbackTransaction(ctx, *rollback)
		out = types.EndTransactionResponse{TransactionStatus: status}
	default:
		if flag.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "usage: dataapi-query [flags] SQL")
			flag.PrintDefaults()
			os.Exit(2)
		}
		out, err = c.ExecuteStatement(ctx, client.Statement{
			SQL:             flag.Arg(0),
			Parameters:      params,
			TransactionID:   *txID,
			IncludeMetadata: *metadata,
		})
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
