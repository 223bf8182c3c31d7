package wirebind_test

import (
	"fmt"
	"strings"

	"github.com/danderson/wirebind"
	"github.com/danderson/wirebind/tokens"
)

// CreateWidgetInput is the input of the example's CreateWidget
// operation. The widget name travels in the request path, and the
// payload carries the rest.
type CreateWidgetInput struct {
	Name string   `wire:"name,path"`
	Size int32    `wire:"size"`
	Tags []string `wire:"tags"`
}

// CreateWidgetOutput is the matching response. The status binding
// captures the HTTP status code alongside the payload fields.
type CreateWidgetOutput struct {
	Status int32  `wire:"status,status"`
	ID     string `wire:"id"`
}

var createWidget = &wirebind.Operation{
	Name:       "CreateWidget",
	Protocol:   wirebind.RestJSON,
	Method:     "POST",
	RequestURI: "/widgets/{name}",
	HasPayload: true,
}

func ExampleMarshal() {
	req, err := wirebind.Marshal(createWidget, CreateWidgetInput{
		Name: "sprocket",
		Size: 5,
		Tags: []string{"new", "shiny"},
	})
	if err != nil {
		panic(err)
	}

	fmt.Println(req.Method, req.Path)
	fmt.Println(req.Header.Get("Content-Type"))
	fmt.Println(string(req.Body))
	// Output:
	// POST /widgets/sprocket
	// application/json
	// {"size":5,"tags":["new","shiny"]}
}

func ExampleUnmarshal() {
	meta := wirebind.ResponseMeta{StatusCode: 201}
	src := tokens.NewJSONSource(strings.NewReader(`{"id":"w-42"}`))

	var out CreateWidgetOutput
	if err := wirebind.Unmarshal(&out, meta, src); err != nil {
		panic(err)
	}

	fmt.Println(out.Status, out.ID)
	// Output: 201 w-42
}
