package grpcserver

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"rtl-testgen/internal/models"
)

// protoFile mirrors proto/test_generator.proto. Field numbers are part of the wire contract.
var (
	protoFile    = mustBuildFile()
	requestDesc  = protoFile.Messages().ByName("TestRequest")
	responseDesc = protoFile.Messages().ByName("TestResponse")
)

func scalarField(name, jsonName string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func mustBuildFile() protoreflect.FileDescriptor {
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING
	fd := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("test_generator.proto"),
		Package: proto.String("testgenerator"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("TestRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("component_code", "componentCode", 1, str),
					scalarField("component_name", "componentName", 2, str),
				},
			},
			{
				Name: proto.String("TestResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("test_code", "testCode", 1, str),
					scalarField("success", "success", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					scalarField("error_message", "errorMessage", 3, str),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("TestGeneratorService"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:       proto.String("GenerateTest"),
				InputType:  proto.String(".testgenerator.TestRequest"),
				OutputType: proto.String(".testgenerator.TestResponse"),
			}},
		}},
	}

	file, err := protodesc.NewFile(fd, nil)
	if err != nil {
		panic(fmt.Sprintf("grpcserver: invalid test_generator descriptor: %v", err))
	}
	return file
}

func stringField(m *dynamicpb.Message, name protoreflect.Name) string {
	return m.Get(m.Descriptor().Fields().ByName(name)).String()
}

func setString(m *dynamicpb.Message, name protoreflect.Name, v string) {
	m.Set(m.Descriptor().Fields().ByName(name), protoreflect.ValueOfString(v))
}

func newRequestMessage(req models.TestRequest) *dynamicpb.Message {
	m := dynamicpb.NewMessage(requestDesc)
	setString(m, "component_code", req.ComponentCode)
	setString(m, "component_name", req.ComponentName)
	return m
}

func requestFromMessage(m *dynamicpb.Message) models.TestRequest {
	return models.TestRequest{
		ComponentCode: stringField(m, "component_code"),
		ComponentName: stringField(m, "component_name"),
	}
}

func newResponseMessage(resp models.TestResponse) *dynamicpb.Message {
	m := dynamicpb.NewMessage(responseDesc)
	setString(m, "test_code", resp.TestCode)
	m.Set(responseDesc.Fields().ByName("success"), protoreflect.ValueOfBool(resp.Success))
	setString(m, "error_message", resp.ErrorMessage)
	return m
}

func responseFromMessage(m *dynamicpb.Message) models.TestResponse {
	return models.TestResponse{
		TestCode:     stringField(m, "test_code"),
		Success:      m.Get(responseDesc.Fields().ByName("success")).Bool(),
		ErrorMessage: stringField(m, "error_message"),
	}
}
