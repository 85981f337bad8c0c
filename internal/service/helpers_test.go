package service

import (
    "encoding/json"
    "fmt"
)

func jsonNumber(v any) json.Number { return json.Number(fmt.Sprint(v)) }
