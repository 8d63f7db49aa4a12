package workflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/richinsley/comfyworkflow/client"
	"github.com/richinsley/comfyworkflow/graphapi"
	"github.com/richinsley/comfyworkflow/workflow"
)

func ExampleNew() {
	prompt, err := graphapi.NewRawPromptFromJSONString(`{
		"6": {"inputs": {"text": "a cat"}, "class_type": "CLIPTextEncode", "_meta": {"title": "INPUT_positive"}},
		"3": {"inputs": {"seed": 1}, "class_type": "KSampler", "_meta": {"title": "KSampler"}},
		"9": {"inputs": {"images": ["8", 0]}, "class_type": "SaveImage", "_meta": {"title": "OUTPUT_final"}}
	}`)
	if err != nil {
		log.Fatal(err)
	}

	wf := workflow.New(prompt)
	fmt.Println(wf.InputNames(), wf.OutputNames())

	if err := wf.SetInput("positive", "text", graphapi.StringValue("a dog")); err != nil {
		log.Fatal(err)
	}
	id, _ := wf.OutputNodeID("final")
	fmt.Println(id)
	// Output:
	// [positive] [final]
	// 9
}

func ExampleWorkflow_GetAllOutputImages() {
	prompt, err := graphapi.NewRawPromptFromJSONFile("workflow_api.json")
	if err != nil {
		log.Fatal(err)
	}
	wf := workflow.New(prompt)

	c := client.NewComfyClient("localhost", 8188, nil)
	defer c.Close()
	images, err := wf.GetAllOutputImages(context.Background(), c)
	if err != nil {
		log.Fatal(err)
	}
	for name, outputs := range images {
		fmt.Println(name, len(outputs))
	}
}
